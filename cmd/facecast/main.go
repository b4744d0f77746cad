// Command facecast runs the face-gesture pointer service: it reads camera
// frames, asks the landmarker sidecar for facial landmarks, turns them into
// smoothed pointer moves and mouth clicks, and broadcasts both as JSON to
// every WebSocket client on /ws.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/facecast-labs/facecast/internal/api"
	"github.com/facecast-labs/facecast/internal/camera"
	"github.com/facecast-labs/facecast/internal/config"
	"github.com/facecast-labs/facecast/internal/eventlog"
	"github.com/facecast-labs/facecast/internal/gesture"
	"github.com/facecast-labs/facecast/internal/hub"
	"github.com/facecast-labs/facecast/internal/landmark"
	"github.com/facecast-labs/facecast/internal/pipeline"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (tick frames + landmark fixtures, no camera or sidecar)")
	listen        = flag.String("listen", ":8765", "Listen address for the HTTP/WebSocket server")
	cameraURL     = flag.String("camera-url", "http://127.0.0.1:8081/stream", "MJPEG camera stream URL (ignored with -frames-dir or -landmark-replay)")
	landmarkerURL = flag.String("landmarker-url", "ws://127.0.0.1:9001/detect", "Landmarker sidecar WebSocket URL")
	framesDir     = flag.String("frames-dir", "", "Directory of JPEG fixtures to replay instead of a live camera")
	landmarkFile  = flag.String("landmark-replay", "", "JSONL landmark script to replay instead of the sidecar")
	loopReplay    = flag.Bool("loop", false, "Loop replay sources at end of input")
	dbPath        = flag.String("db", "facecast.db", "Event log database path (empty disables persistence)")
	tuningPath    = flag.String("tuning", "", "Tuning overrides JSON file (defaults apply when empty)")
	logStreams    = flag.String("log-streams", "ops", "Comma-separated debug log streams to enable: ops,diag,trace")
)

const devLandmarkFixtures = "fixtures/landmarks.jsonl"

// wireLogStreams routes the selected package log streams to stderr.
func wireLogStreams(selection string) {
	var ops, diag, trace io.Writer
	for _, name := range strings.Split(selection, ",") {
		switch strings.TrimSpace(name) {
		case "ops":
			ops = os.Stderr
		case "diag":
			diag = os.Stderr
		case "trace":
			trace = os.Stderr
		case "":
		default:
			log.Printf("unknown log stream %q (want ops, diag, or trace)", name)
		}
	}
	hub.SetLogWriters(ops, diag, trace)
	pipeline.SetLogWriters(ops, diag, trace)
	landmark.SetLogWriters(ops, diag)
}

// buildFrameSource picks the frame source for the configured mode.
func buildFrameSource(tuning *config.TuningConfig, landmarkReplay bool) (camera.FrameSource, error) {
	fps := tuning.GetNominalFPS()
	switch {
	case *framesDir != "":
		return camera.NewReplaySource(*framesDir, fps, *loopReplay)
	case landmarkReplay:
		// The landmark script carries the content; frames only set the pace.
		return camera.NewTickSource(fps)
	default:
		return camera.NewMJPEGSource(*cameraURL), nil
	}
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	wireLogStreams(*logStreams)

	tuning := config.EmptyTuningConfig()
	if *tuningPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	scriptPath := *landmarkFile
	if scriptPath == "" && *devMode {
		scriptPath = devLandmarkFixtures
	}

	source, err := buildFrameSource(tuning, scriptPath != "")
	if err != nil {
		log.Fatalf("failed to create frame source: %v", err)
	}
	defer source.Close()

	var detector landmark.Detector
	if scriptPath != "" {
		detector, err = landmark.NewReplayDetector(scriptPath, *loopReplay)
		if err != nil {
			log.Fatalf("failed to load landmark script: %v", err)
		}
	} else {
		detector = landmark.NewWSDetector(*landmarkerURL)
	}
	defer detector.Close()

	var events *eventlog.DB
	var session *eventlog.Session
	if *dbPath != "" {
		events, err = eventlog.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
		defer events.Close()

		session, err = events.BeginSession(time.Now())
		if err != nil {
			log.Fatalf("failed to begin session: %v", err)
		}
		log.Printf("recording session %s", session.ID)
	}

	broadcast := hub.New()
	defer broadcast.Close()

	stats := pipeline.NewFrameStats()
	pipe := &pipeline.Pipeline{
		Source:        source,
		Detector:      detector,
		Processor:     gesture.NewProcessor(tuning.GestureConfig()),
		Gate:          &gesture.ChangeGate{},
		Sink:          broadcast,
		Stats:         stats,
		NominalFPS:    tuning.GetNominalFPS(),
		StatsInterval: tuning.GetStatsInterval(),
	}
	if session != nil {
		pipe.Events = session
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Frame loop. When a finite replay ends the whole process winds down.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil {
			log.Printf("pipeline failed: %v", err)
		}
		log.Print("pipeline routine terminated")
		stop()
	}()

	// HTTP server goroutine: API endpoints plus the /ws broadcast endpoint.
	// Client connections are accepted here independently of the frame loop,
	// so a blocked camera read never stalls a new subscriber.
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(broadcast, stats, events, tuning).ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
