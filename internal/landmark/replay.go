package landmark

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/facecast-labs/facecast/internal/camera"
	"github.com/facecast-labs/facecast/internal/gesture"
)

// ReplayDetector plays back a recorded landmark session from a JSONL file:
// one JSON object per frame, {"landmarks":[{"x":..,"y":..},...]} for a
// detection and {} for a gap frame. Frame image content is ignored; the
// script is the source of truth, which makes full-pipeline runs exactly
// reproducible.
type ReplayDetector struct {
	frames [][]gesture.Landmark
	idx    int
	loop   bool
}

// NewReplayDetector loads the script at path. With loop set the script
// restarts from the first frame when exhausted; otherwise Detect returns
// ErrScriptEnded.
func NewReplayDetector(path string, loop bool) (*ReplayDetector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open landmark script: %w", err)
	}
	defer f.Close()

	var frames [][]gesture.Landmark
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp detectResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("parse landmark script line %d: %w", lineNo, err)
		}
		frames = append(frames, toLandmarks(resp.Landmarks))
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read landmark script: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("landmark script %s has no frames", path)
	}

	return &ReplayDetector{frames: frames, loop: loop}, nil
}

// Detect returns the next scripted frame.
func (d *ReplayDetector) Detect(ctx context.Context, _ camera.Frame, _ int64) ([]gesture.Landmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.idx >= len(d.frames) {
		if !d.loop {
			return nil, ErrScriptEnded
		}
		d.idx = 0
	}
	lm := d.frames[d.idx]
	d.idx++
	return lm, nil
}

// Close is a no-op; the script is fully loaded at construction.
func (d *ReplayDetector) Close() error {
	return nil
}
