// Package camera provides frame acquisition sources. A source hands out one
// frame at a time; the pipeline never reads ahead, so acquisition pace is
// the pipeline's clock.
package camera

import (
	"context"
	"errors"
	"time"
)

// Frame is a single acquired camera frame. Data holds raw JPEG bytes and is
// empty for cadence-only sources.
type Frame struct {
	Data     []byte
	Width    int
	Height   int
	Seq      int64     // Monotonic frame index, starting at 0
	Captured time.Time // Acquisition time
}

// FrameSource yields frames one at a time. Next blocks until a frame is
// available, the stream ends, or ctx is cancelled. Implementations are used
// by a single goroutine.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

var (
	// ErrSourceClosed is returned by Next after Close.
	ErrSourceClosed = errors.New("camera: source closed")
	// ErrStreamEnded is returned when a finite source runs out of frames.
	ErrStreamEnded = errors.New("camera: stream ended")
)
