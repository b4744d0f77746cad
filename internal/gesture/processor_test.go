package gesture

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFramePeriod is the nominal 30 fps frame spacing used by the tests.
const testFramePeriod = time.Second / 30

var testBase = time.Unix(1700000000, 0)

func frameTime(i int) time.Time {
	return testBase.Add(time.Duration(i) * testFramePeriod)
}

// faceAt builds a complete landmark sequence with the anchor at (ax, ay) and
// a mouth geometry whose open ratio is exactly `ratio`.
func faceAt(ax, ay, ratio float64) []Landmark {
	lm := make([]Landmark, LandmarkCount)
	lm[AnchorIndex] = Landmark{X: ax, Y: ay}

	const mouthWidth = 0.10
	gap := ratio * (mouthWidth + RatioEpsilon)
	lm[UpperLipIndex] = Landmark{X: 0.5, Y: 0.60}
	lm[LowerLipIndex] = Landmark{X: 0.5, Y: 0.60 + gap}
	lm[MouthCornerLeftIndex] = Landmark{X: 0.5 - mouthWidth/2, Y: 0.62}
	lm[MouthCornerRightIndex] = Landmark{X: 0.5 + mouthWidth/2, Y: 0.62}
	return lm
}

func TestProcessorFirstDetectionSeedsState(t *testing.T) {
	t.Parallel()

	p := NewProcessor(DefaultConfig())
	up, ok := p.Process(faceAt(0.42, 0.58, 0.10), frameTime(0))
	require.True(t, ok)

	// Centre initialises on the anchor, so displacement is zero and the
	// pointer seeds at the screen midpoint.
	cx, cy, hasCenter := p.Center()
	assert.True(t, hasCenter)
	assert.Equal(t, 0.42, cx)
	assert.Equal(t, 0.58, cy)
	assert.Equal(t, 0.5, up.X)
	assert.Equal(t, 0.5, up.Y)
	assert.False(t, up.Click)
}

func TestProcessorNoDetectionLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	control := NewProcessor(DefaultConfig())
	subject := NewProcessor(DefaultConfig())

	first := faceAt(0.50, 0.50, 0.10)
	_, ok := control.Process(first, frameTime(0))
	require.True(t, ok)
	_, ok = subject.Process(first, frameTime(0))
	require.True(t, ok)

	// Gap frames in every invalid shape: nil, empty, partial, oversized.
	for i, lm := range [][]Landmark{nil, {}, make([]Landmark, 10), make([]Landmark, LandmarkCount+1)} {
		up, ok := subject.Process(lm, frameTime(1+i))
		assert.False(t, ok, "sequence %d should be rejected", i)
		assert.Zero(t, up)
	}

	// After the dropout both processors must agree exactly.
	next := faceAt(0.53, 0.48, 0.10)
	want, ok := control.Process(next, frameTime(5))
	require.True(t, ok)
	got, ok := subject.Process(next, frameTime(5))
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestProcessorCentreAdaptsOnlyWhenStable(t *testing.T) {
	t.Parallel()

	p := NewProcessor(DefaultConfig())
	p.Process(faceAt(0.50, 0.50, 0.10), frameTime(0))

	// Small drift within the stability threshold pulls the centre along.
	p.Process(faceAt(0.51, 0.50, 0.10), frameTime(1))
	cx, _, _ := p.Center()
	assert.InDelta(t, 0.50+0.02*0.01, cx, 1e-12)

	// A deliberate excursion beyond the threshold must not move the centre.
	before, beforeY, _ := p.Center()
	p.Process(faceAt(0.58, 0.50, 0.10), frameTime(2))
	cx, cy, _ := p.Center()
	assert.Equal(t, before, cx)
	assert.Equal(t, beforeY, cy)

	// One axis out of bounds freezes both axes.
	p.Process(faceAt(before+0.01, 0.55, 0.10), frameTime(3))
	cx2, cy2, _ := p.Center()
	assert.Equal(t, cx, cx2)
	assert.Equal(t, cy, cy2)
}

func TestProcessorGainAndClampAroundMidpoint(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SmoothingAlpha = 1.0 // No smoothing lag, expose the raw mapping
	p := NewProcessor(cfg)
	p.Process(faceAt(0.50, 0.50, 0.10), frameTime(0))

	up, ok := p.Process(faceAt(0.53, 0.48, 0.10), frameTime(1))
	require.True(t, ok)
	assert.InDelta(t, 0.5+0.03*cfg.GainX, up.X, 1e-9)
	assert.InDelta(t, 0.5-0.02*cfg.GainY, up.Y, 1e-9)

	// Far excursions clamp to the screen edge.
	up, ok = p.Process(faceAt(0.95, 0.02, 0.10), frameTime(2))
	require.True(t, ok)
	assert.Equal(t, 1.0, up.X)
	assert.Equal(t, 0.0, up.Y)
}

func TestSoftDeadzoneContinuousAtBoundary(t *testing.T) {
	t.Parallel()

	const dz = DefaultDeadzone

	// Inside the band the ramp scales linearly; outside it passes through.
	assert.Equal(t, 0.0, softDeadzone(0, dz))
	assert.InDelta(t, 0.005*(0.005/dz), softDeadzone(0.005, dz), 1e-15)
	assert.Equal(t, 0.03, softDeadzone(0.03, dz))
	assert.Equal(t, -0.03, softDeadzone(-0.03, dz))

	// No step at the boundary: approaching from inside converges on the
	// passthrough value.
	inside := softDeadzone(dz-1e-9, dz)
	assert.InDelta(t, softDeadzone(dz, dz), inside, 1e-6)

	// Symmetry inside the band.
	assert.Equal(t, -softDeadzone(0.004, dz), softDeadzone(-0.004, dz))

	// Degenerate width collapses the band to zero rather than dividing by it.
	assert.Equal(t, 0.0, softDeadzone(1e-10, 0))
	assert.Equal(t, 0.0, softDeadzone(1e-12, 1e-10))
}

func TestQuantize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.5234, Quantize(0.52339))
	assert.Equal(t, 0.5234, Quantize(0.52336))
	assert.Equal(t, 0.5233, Quantize(0.52334))
	assert.Equal(t, 0.0, Quantize(0.00004))
	assert.Equal(t, 1.0, Quantize(0.99996))
}

func TestProcessorDeterministicReplay(t *testing.T) {
	t.Parallel()

	input := make([][]Landmark, 0, 60)
	for i := 0; i < 60; i++ {
		switch {
		case i%13 == 0:
			input = append(input, nil) // Detector dropouts
		case i < 30:
			input = append(input, faceAt(0.5+0.001*float64(i), 0.5, 0.10))
		default:
			input = append(input, faceAt(0.53, 0.48, 0.30))
		}
	}

	run := func() []PointerUpdate {
		p := NewProcessor(DefaultConfig())
		out := make([]PointerUpdate, 0, len(input))
		for i, lm := range input {
			if up, ok := p.Process(lm, frameTime(i)); ok {
				out = append(out, up)
			}
		}
		return out
	}

	assert.Equal(t, run(), run(), "same input history must yield identical output")
}

// TestProcessorSessionScenario walks the canonical three-phase session:
// hold still, glance right and up, then open the mouth.
func TestProcessorSessionScenario(t *testing.T) {
	t.Parallel()

	p := NewProcessor(DefaultConfig())
	var gate ChangeGate

	type emitted struct {
		frame int
		msg   Message
	}
	var moves, clicks []emitted

	feed := func(frame int, lm []Landmark) {
		up, ok := p.Process(lm, frameTime(frame))
		require.True(t, ok)
		if up.Click {
			clicks = append(clicks, emitted{frame, NewClick(up.X, up.Y)})
		}
		if gate.ShouldEmit(up.X, up.Y) {
			moves = append(moves, emitted{frame, NewMove(up.X, up.Y)})
		}
	}

	// Phase 1: anchor at rest for 5 frames. Only the very first frame emits.
	for i := 0; i < 5; i++ {
		feed(i, faceAt(0.50, 0.50, 0.10))
	}
	require.Len(t, moves, 1)
	assert.Equal(t, Message{Type: MessageMove, X: 0.5, Y: 0.5}, moves[0].msg)
	assert.Empty(t, clicks)

	// Phase 2: jump to (0.53, 0.48) for 10 frames. The pointer converges on
	// the gain-scaled target (0.584, 0.436) with no clicks.
	for i := 5; i < 15; i++ {
		feed(i, faceAt(0.53, 0.48, 0.10))
	}
	require.Greater(t, len(moves), 3)
	assert.Empty(t, clicks)

	last := moves[len(moves)-1].msg
	assert.InDelta(t, 0.584, last.X, 5e-4)
	assert.InDelta(t, 0.436, last.Y, 5e-4)
	for i := 2; i < len(moves); i++ {
		assert.Greater(t, moves[i].msg.X, moves[i-1].msg.X, "X approaches target monotonically")
		assert.Less(t, moves[i].msg.Y, moves[i-1].msg.Y, "Y approaches target monotonically")
	}

	// Phase 3: mouth opens (ratio 0.30) for 3 frames. Exactly one click, on
	// the second open frame, at the held pointer position.
	movesBefore := len(moves)
	for i := 15; i < 18; i++ {
		feed(i, faceAt(0.53, 0.48, 0.30))
	}
	require.Len(t, clicks, 1)
	assert.Equal(t, 16, clicks[0].frame)
	assert.Equal(t, MessageClick, clicks[0].msg.Type)
	assert.InDelta(t, last.X, clicks[0].msg.X, 1e-3)
	assert.Len(t, moves, movesBefore, "converged pointer stays silent during the click")
}

func TestMouthRatioScaleInvariance(t *testing.T) {
	t.Parallel()

	// The same mouth shape at half scale keeps its ratio.
	big := faceAt(0.5, 0.5, 0.31)
	small := make([]Landmark, LandmarkCount)
	copy(small, big)
	for _, idx := range []int{UpperLipIndex, LowerLipIndex, MouthCornerLeftIndex, MouthCornerRightIndex} {
		small[idx] = Landmark{
			X: 0.5 + (big[idx].X-0.5)/2,
			Y: 0.6 + (big[idx].Y-0.6)/2,
		}
	}

	rBig := MouthOpenRatio(big)
	rSmall := MouthOpenRatio(small)
	if math.Abs(rBig-rSmall) > 1e-4 {
		t.Fatalf("ratio changed with scale: big=%f small=%f", rBig, rSmall)
	}
}
