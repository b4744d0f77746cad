// Package landmark provides facial landmark detectors. The real detector
// talks to an external landmarker sidecar hosting the face model; the replay
// detector plays back recorded sessions for development and tests.
package landmark

import (
	"context"
	"errors"

	"github.com/facecast-labs/facecast/internal/camera"
	"github.com/facecast-labs/facecast/internal/gesture"
)

// Detector extracts facial landmarks from a single frame.
//
// Timestamps passed to Detect must be monotonically non-decreasing across
// calls; the model tracks the subject between frames and rejects
// out-of-order input. A (nil, nil) return means the frame contained no
// usable face, which is a normal per-frame outcome rather than an error.
type Detector interface {
	Detect(ctx context.Context, frame camera.Frame, timestampMS int64) ([]gesture.Landmark, error)
	Close() error
}

// ErrScriptEnded is returned by a non-looping replay detector once its
// recorded frames are exhausted.
var ErrScriptEnded = errors.New("landmark: replay script ended")

// detectRequest is the sidecar request envelope. The image travels as
// base64 JPEG inside the JSON text frame.
type detectRequest struct {
	Type        string `json:"type"`
	Seq         int64  `json:"seq"`
	TimestampMS int64  `json:"timestamp_ms"`
	Image       string `json:"image"`
}

// detectResponse is the sidecar reply. An empty or absent landmark array
// means no detection.
type detectResponse struct {
	Landmarks []landmarkPoint `json:"landmarks"`
	Error     string          `json:"error,omitempty"`
}

type landmarkPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func toLandmarks(points []landmarkPoint) []gesture.Landmark {
	if len(points) == 0 {
		return nil
	}
	out := make([]gesture.Landmark, len(points))
	for i, p := range points {
		out[i] = gesture.Landmark{X: p.X, Y: p.Y}
	}
	return out
}
