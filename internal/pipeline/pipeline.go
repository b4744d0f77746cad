// Package pipeline runs the frame loop: acquire a frame, detect landmarks,
// advance the gesture processor, and broadcast change-gated pointer and
// click messages. The loop is strictly sequential; each frame is processed
// to completion before the next is read, and the processor state is owned
// by the loop goroutine alone.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facecast-labs/facecast/internal/camera"
	"github.com/facecast-labs/facecast/internal/gesture"
	"github.com/facecast-labs/facecast/internal/landmark"
)

// invalidLogEvery rate-limits the ops log for invalid landmark sequences;
// a misbehaving detector produces them at frame rate.
const invalidLogEvery = 100

// Broadcaster delivers one message to every connected client.
type Broadcaster interface {
	Broadcast(msg gesture.Message)
}

// EventSink persists emitted messages. Both methods are best-effort from
// the pipeline's point of view: failures are logged, never fatal.
type EventSink interface {
	RecordMove(at time.Time, x, y float64) error
	RecordClick(at time.Time, x, y, mouthRatio float64) error
}

// Pipeline wires a frame source and a landmark detector to the gesture
// processor and the broadcast hub. All fields except Events and Stats are
// required; a nil Events disables persistence and a nil Stats is replaced
// at Run time.
type Pipeline struct {
	Source    camera.FrameSource
	Detector  landmark.Detector
	Processor *gesture.Processor
	Gate      *gesture.ChangeGate
	Sink      Broadcaster
	Events    EventSink
	Stats     *FrameStats

	// NominalFPS drives the synthetic detector timestamps
	// (frameIdx * 1000 / NominalFPS). Must be positive.
	NominalFPS int

	// StatsInterval is the period of the diag rate log. Zero disables it.
	StatsInterval time.Duration
}

// Run processes frames until the context is cancelled or the source ends.
// A finite source running out of frames (replay without loop) is a normal
// return, not an error.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.NominalFPS <= 0 {
		return fmt.Errorf("pipeline nominal fps must be positive, got %d", p.NominalFPS)
	}
	if p.Stats == nil {
		p.Stats = NewFrameStats()
	}

	if p.StatsInterval > 0 {
		ticker := time.NewTicker(p.StatsInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ticker.C:
					p.Stats.LogRates()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	diagf("pipeline started (nominal %d fps)", p.NominalFPS)
	var frameIdx int64
	for {
		if ctx.Err() != nil {
			diagf("pipeline stopped after %d frames", frameIdx)
			return nil
		}

		frame, err := p.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				diagf("pipeline stopped after %d frames", frameIdx)
				return nil
			case errors.Is(err, camera.ErrStreamEnded):
				diagf("frame source ended after %d frames", frameIdx)
				return nil
			default:
				return fmt.Errorf("acquire frame: %w", err)
			}
		}

		// Detectors that track the subject across frames demand a
		// monotonically non-decreasing timestamp, so it derives from the
		// frame index rather than the wall clock.
		timestampMS := frameIdx * 1000 / int64(p.NominalFPS)
		frameIdx++
		p.Stats.AddFrame()

		if err := p.processFrame(ctx, frame, timestampMS); err != nil {
			diagf("landmark script ended after %d frames", frameIdx)
			return nil
		}
	}
}

// processFrame runs detection and the gesture transform for one frame.
// Every failure mode downgrades to "no detection" (the tracker holds its
// state and nothing is emitted), except an ended replay script, which is
// returned so Run can finish the session.
func (p *Pipeline) processFrame(ctx context.Context, frame camera.Frame, timestampMS int64) error {
	lm, err := p.Detector.Detect(ctx, frame, timestampMS)
	if err != nil {
		if errors.Is(err, landmark.ErrScriptEnded) {
			return err
		}
		p.Stats.AddDetectorError()
		tracef("detect frame %d: %v", frame.Seq, err)
		return nil
	}
	if len(lm) == 0 {
		p.Stats.AddMiss()
		return nil
	}
	if !gesture.ValidSequence(lm) {
		p.Stats.AddInvalidSequence()
		if n := p.Stats.Snapshot().InvalidSeqs; n == 1 || n%invalidLogEvery == 0 {
			opsf("detector returned %d landmarks, want %d (%d so far)", len(lm), gesture.LandmarkCount, n)
		}
		return nil
	}

	at := frame.Captured
	if at.IsZero() {
		// Scripted sources without capture times fall back to the synthetic
		// clock so cooldown timing stays deterministic.
		at = time.Unix(0, timestampMS*int64(time.Millisecond))
	}

	update, ok := p.Processor.Process(lm, at)
	if !ok {
		p.Stats.AddMiss()
		return nil
	}
	p.Stats.AddDetection(update.MouthRatio)

	if p.Gate.ShouldEmit(update.X, update.Y) {
		p.emit(gesture.NewMove(update.X, update.Y), at, update)
		p.Stats.AddMove()
	}
	if update.Click {
		p.emit(gesture.NewClick(update.X, update.Y), at, update)
		p.Stats.AddClick()
		diagf("click at (%.4f, %.4f), ratio %.3f", update.X, update.Y, update.MouthRatio)
	}
	return nil
}

// emit broadcasts one message and mirrors it into the event log.
func (p *Pipeline) emit(msg gesture.Message, at time.Time, update gesture.PointerUpdate) {
	p.Sink.Broadcast(msg)
	if p.Events == nil {
		return
	}

	var err error
	switch msg.Type {
	case gesture.MessageMove:
		err = p.Events.RecordMove(at, msg.X, msg.Y)
	case gesture.MessageClick:
		err = p.Events.RecordClick(at, msg.X, msg.Y, update.MouthRatio)
	}
	if err != nil {
		opsf("record %s event: %v", msg.Type, err)
	}
}
