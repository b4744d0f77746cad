package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facecast-labs/facecast/internal/camera"
	"github.com/facecast-labs/facecast/internal/gesture"
)

var testBase = time.Unix(1700000000, 0)

// scriptSource hands out one frame per scripted entry with deterministic
// capture times, then reports the stream ended.
type scriptSource struct {
	frames int
	next   int
}

func (s *scriptSource) Next(ctx context.Context) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}
	if s.next >= s.frames {
		return camera.Frame{}, camera.ErrStreamEnded
	}
	f := camera.Frame{
		Seq:      int64(s.next),
		Captured: testBase.Add(time.Duration(s.next) * time.Second / 30),
	}
	s.next++
	return f, nil
}

func (s *scriptSource) Close() error { return nil }

// scriptDetector replays a fixed landmark script. A nil entry is a miss and
// an error entry simulates a sidecar failure.
type scriptDetector struct {
	script []detectStep
	calls  int

	lastTimestampMS int64
	monotonic       bool
}

type detectStep struct {
	lm  []gesture.Landmark
	err error
}

func newScriptDetector(steps []detectStep) *scriptDetector {
	return &scriptDetector{script: steps, monotonic: true, lastTimestampMS: -1}
}

func (d *scriptDetector) Detect(_ context.Context, _ camera.Frame, timestampMS int64) ([]gesture.Landmark, error) {
	if timestampMS < d.lastTimestampMS {
		d.monotonic = false
	}
	d.lastTimestampMS = timestampMS

	step := d.script[d.calls%len(d.script)]
	d.calls++
	return step.lm, step.err
}

func (d *scriptDetector) Close() error { return nil }

// captureSink records every broadcast message in order.
type captureSink struct {
	messages []gesture.Message
}

func (s *captureSink) Broadcast(msg gesture.Message) {
	s.messages = append(s.messages, msg)
}

func (s *captureSink) byType(t gesture.MessageType) []gesture.Message {
	var out []gesture.Message
	for _, m := range s.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// memEvents is an EventSink recording calls, optionally failing.
type memEvents struct {
	moves  int
	clicks int
	fail   bool
}

func (e *memEvents) RecordMove(time.Time, float64, float64) error {
	e.moves++
	if e.fail {
		return errors.New("sink down")
	}
	return nil
}

func (e *memEvents) RecordClick(time.Time, float64, float64, float64) error {
	e.clicks++
	if e.fail {
		return errors.New("sink down")
	}
	return nil
}

// faceAt builds a complete landmark sequence with the anchor at (ax, ay)
// and the given mouth-open ratio.
func faceAt(ax, ay, ratio float64) []gesture.Landmark {
	lm := make([]gesture.Landmark, gesture.LandmarkCount)
	lm[gesture.AnchorIndex] = gesture.Landmark{X: ax, Y: ay}

	const mouthWidth = 0.10
	gap := ratio * (mouthWidth + gesture.RatioEpsilon)
	lm[gesture.UpperLipIndex] = gesture.Landmark{X: 0.5, Y: 0.60}
	lm[gesture.LowerLipIndex] = gesture.Landmark{X: 0.5, Y: 0.60 + gap}
	lm[gesture.MouthCornerLeftIndex] = gesture.Landmark{X: 0.45, Y: 0.62}
	lm[gesture.MouthCornerRightIndex] = gesture.Landmark{X: 0.55, Y: 0.62}
	return lm
}

func newTestPipeline(source camera.FrameSource, det *scriptDetector, sink *captureSink, events EventSink) *Pipeline {
	return &Pipeline{
		Source:     source,
		Detector:   det,
		Processor:  gesture.NewProcessor(gesture.DefaultConfig()),
		Gate:       &gesture.ChangeGate{},
		Sink:       sink,
		Events:     events,
		Stats:      NewFrameStats(),
		NominalFPS: 30,
	}
}

func TestPipelineSessionScenario(t *testing.T) {
	t.Parallel()

	// Stationary face, then a deliberate excursion, then an open-mouth
	// episode long enough to click exactly once.
	var steps []detectStep
	for i := 0; i < 5; i++ {
		steps = append(steps, detectStep{lm: faceAt(0.50, 0.50, 0.10)})
	}
	for i := 0; i < 10; i++ {
		steps = append(steps, detectStep{lm: faceAt(0.53, 0.48, 0.10)})
	}
	for i := 0; i < 3; i++ {
		steps = append(steps, detectStep{lm: faceAt(0.53, 0.48, 0.30)})
	}

	det := newScriptDetector(steps)
	sink := &captureSink{}
	events := &memEvents{}
	p := newTestPipeline(&scriptSource{frames: len(steps)}, det, sink, events)

	require.NoError(t, p.Run(context.Background()))
	assert.True(t, det.monotonic, "detector timestamps must be non-decreasing")

	clicks := sink.byType(gesture.MessageClick)
	require.Len(t, clicks, 1, "one open episode fires one click")
	moves := sink.byType(gesture.MessageMove)
	require.NotEmpty(t, moves)

	// The excursion drives the smoothed pointer toward the gain-scaled
	// target (0.5 + 0.03*2.8, 0.5 - 0.02*3.2) = (0.584, 0.436).
	last := moves[len(moves)-1]
	assert.InDelta(t, 0.584, last.X, 0.005)
	assert.InDelta(t, 0.436, last.Y, 0.005)

	// The click carries the current pointer position.
	assert.InDelta(t, last.X, clicks[0].X, 0.005)

	snap := p.Stats.Snapshot()
	assert.Equal(t, int64(18), snap.Frames)
	assert.Equal(t, int64(18), snap.Detections)
	assert.Equal(t, int64(1), snap.Clicks)
	assert.Equal(t, int64(len(moves)), snap.Moves)
	assert.Equal(t, len(moves), events.moves)
	assert.Equal(t, 1, events.clicks)
}

func TestPipelineChangeGateSuppressesStationaryPointer(t *testing.T) {
	t.Parallel()

	steps := make([]detectStep, 20)
	for i := range steps {
		steps[i] = detectStep{lm: faceAt(0.50, 0.50, 0.10)}
	}
	sink := &captureSink{}
	p := newTestPipeline(&scriptSource{frames: len(steps)}, newScriptDetector(steps), sink, nil)

	require.NoError(t, p.Run(context.Background()))

	// A perfectly still face emits exactly one move, not twenty.
	assert.Len(t, sink.byType(gesture.MessageMove), 1)
	assert.Empty(t, sink.byType(gesture.MessageClick))
}

func TestPipelineDropoutHoldsState(t *testing.T) {
	t.Parallel()

	steps := []detectStep{
		{lm: faceAt(0.50, 0.50, 0.10)},
		{lm: nil}, // miss
		{lm: nil},
		{lm: faceAt(0.50, 0.50, 0.10)},
	}
	sink := &captureSink{}
	p := newTestPipeline(&scriptSource{frames: len(steps)}, newScriptDetector(steps), sink, nil)

	require.NoError(t, p.Run(context.Background()))

	// Misses emit nothing, and the resumed identical detection is still
	// suppressed by the change gate.
	assert.Len(t, sink.messages, 1)
	snap := p.Stats.Snapshot()
	assert.Equal(t, int64(2), snap.Misses)
	assert.Equal(t, int64(2), snap.Detections)
}

func TestPipelineInvalidSequenceTreatedAsMiss(t *testing.T) {
	t.Parallel()

	partial := make([]gesture.Landmark, 100)
	steps := []detectStep{
		{lm: faceAt(0.50, 0.50, 0.10)},
		{lm: partial},
		{lm: faceAt(0.50, 0.50, 0.10)},
	}
	sink := &captureSink{}
	p := newTestPipeline(&scriptSource{frames: len(steps)}, newScriptDetector(steps), sink, nil)

	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, sink.messages, 1)
	snap := p.Stats.Snapshot()
	assert.Equal(t, int64(1), snap.InvalidSeqs)
	assert.Equal(t, int64(2), snap.Detections)
}

func TestPipelineDetectorErrorsDoNotAbort(t *testing.T) {
	t.Parallel()

	steps := []detectStep{
		{err: errors.New("sidecar reconnecting")},
		{lm: faceAt(0.50, 0.50, 0.10)},
	}
	sink := &captureSink{}
	p := newTestPipeline(&scriptSource{frames: len(steps)}, newScriptDetector(steps), sink, nil)

	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, sink.messages, 1)
	assert.Equal(t, int64(1), p.Stats.Snapshot().DetectorErrors)
}

func TestPipelineEventSinkFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	steps := []detectStep{{lm: faceAt(0.50, 0.50, 0.10)}}
	sink := &captureSink{}
	events := &memEvents{fail: true}
	p := newTestPipeline(&scriptSource{frames: 1}, newScriptDetector(steps), sink, events)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, sink.messages, 1, "broadcast happens even when persistence fails")
}

func TestPipelineStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []detectStep{{lm: faceAt(0.50, 0.50, 0.10)}}
	p := newTestPipeline(&scriptSource{frames: 1000}, newScriptDetector(steps), &captureSink{}, nil)

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, p.Stats.Snapshot().Frames)
}

func TestPipelineRejectsZeroFPS(t *testing.T) {
	t.Parallel()

	p := &Pipeline{NominalFPS: 0}
	assert.Error(t, p.Run(context.Background()))
}
