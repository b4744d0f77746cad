package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// showTraceChart renders a quick scatter plot (HTML) of a session's pointer
// trace with click markers using go-echarts. This is a debugging-only
// endpoint (no auth) to eyeball tracker behaviour without external tooling.
// Query params:
//   - session_id (optional; defaults to the latest session)
//   - max_points (optional; default 5000) to reduce payload size
func (s *Server) showTraceChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.events == nil {
		s.writeJSONError(w, http.StatusNotFound, "event log disabled")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		latest, err := s.events.LatestSessionID()
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.writeJSONError(w, http.StatusNotFound, "no sessions recorded")
				return
			}
			log.Printf("query latest session: %v", err)
			s.writeJSONError(w, http.StatusInternalServerError, "query failed")
			return
		}
		sessionID = latest
	}

	maxPoints := 5000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	trace, err := s.events.SessionTrace(sessionID, maxPoints*2)
	if err != nil {
		log.Printf("query session trace: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(trace) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no pointer observations for session")
		return
	}
	clicks, err := s.events.SessionClicks(sessionID)
	if err != nil {
		log.Printf("query session clicks: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "query failed")
		return
	}

	// Downsample by stride to stay within maxPoints.
	stride := 1
	if len(trace) > maxPoints {
		stride = int(math.Ceil(float64(len(trace)) / float64(maxPoints)))
	}

	moveData := make([]opts.ScatterData, 0, len(trace)/stride+1)
	for i := 0; i < len(trace); i += stride {
		o := trace[i]
		// Y is flipped so the chart matches screen orientation (pointer Y
		// grows downward).
		moveData = append(moveData, opts.ScatterData{Value: []interface{}{o.X, 1 - o.Y}, SymbolSize: 4})
	}
	clickData := make([]opts.ScatterData, 0, len(clicks))
	for _, c := range clicks {
		clickData = append(clickData, opts.ScatterData{Value: []interface{}{c.X, 1 - c.Y}, SymbolSize: 14})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pointer Trace", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pointer Trace",
			Subtitle: fmt.Sprintf("session=%s moves=%d clicks=%d stride=%d", sessionID, len(trace), len(clicks), stride),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "X"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Y (flipped)"}),
	)
	scatter.AddSeries("pointer", moveData)
	scatter.AddSeries("clicks", clickData)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := scatter.Render(w); err != nil {
		log.Printf("render trace chart: %v", err)
	}
}
