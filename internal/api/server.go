// Package api serves the HTTP surface: health, stats, effective tuning,
// recent events, the WebSocket broadcast endpoint, and a debug trace chart.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/facecast-labs/facecast/internal/config"
	"github.com/facecast-labs/facecast/internal/eventlog"
	"github.com/facecast-labs/facecast/internal/hub"
	"github.com/facecast-labs/facecast/internal/pipeline"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server bundles the service's read-side dependencies. Events may be nil
// when persistence is disabled; the event endpoints then report 404.
type Server struct {
	hub     *hub.Hub
	stats   *pipeline.FrameStats
	events  *eventlog.DB
	tuning  *config.TuningConfig
	started time.Time
}

// NewServer creates the API server.
func NewServer(h *hub.Hub, stats *pipeline.FrameStats, events *eventlog.DB, tuning *config.TuningConfig) *Server {
	return &Server{
		hub:     h,
		stats:   stats,
		events:  events,
		tuning:  tuning,
		started: time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade take over the connection through the
// logging wrapper.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/events", s.listClickEvents)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/debug/trace", s.showTraceChart)
	mux.Handle("/ws", s.hub.Handler())
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"service":        "facecast",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"pipeline":          s.stats.Snapshot(),
		"clients":           s.hub.ClientCount(),
		"broadcast_dropped": s.hub.Dropped(),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	// Tuning constants are fixed at startup; this endpoint reports the
	// effective values, it never changes them.
	s.writeJSON(w, s.tuning.Effective())
}

// parseLimit reads a bounded ?limit= query parameter.
func parseLimit(r *http.Request, def, max int) (int, bool) {
	q := r.URL.Query().Get("limit")
	if q == "" {
		return def, true
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

func (s *Server) listClickEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.events == nil {
		s.writeJSONError(w, http.StatusNotFound, "event log disabled")
		return
	}
	limit, ok := parseLimit(r, 50, 1000)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	clicks, err := s.events.RecentClicks(limit)
	if err != nil {
		log.Printf("query recent clicks: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if clicks == nil {
		clicks = []eventlog.ClickEvent{}
	}
	s.writeJSON(w, clicks)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.events == nil {
		s.writeJSONError(w, http.StatusNotFound, "event log disabled")
		return
	}
	limit, ok := parseLimit(r, 20, 500)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	sessions, err := s.events.Sessions(limit)
	if err != nil {
		log.Printf("query sessions: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if sessions == nil {
		sessions = []eventlog.SessionInfo{}
	}
	s.writeJSON(w, sessions)
}
