// Package gesture turns per-frame facial landmark sequences into a smoothed
// pointer position and discrete mouth-click events. The processor is a pure
// state machine: its output is a function of its tuning, its accumulated
// state, and the frames it has been fed, which makes recorded sessions
// bit-for-bit replayable.
package gesture

import (
	"math"
	"time"
)

// PointerUpdate is the per-frame output of the processor.
type PointerUpdate struct {
	X     float64 // Quantised pointer X in [0, 1]
	Y     float64 // Quantised pointer Y in [0, 1]
	Click bool    // True when this frame fired a click

	// MouthRatio is the raw open ratio for this frame, exported for stats
	// and threshold calibration. It is not part of the wire protocol.
	MouthRatio float64
}

// Processor converts landmark sequences into pointer updates. It owns all
// per-subject tracking state and is not safe for concurrent use; the frame
// loop is its single caller.
type Processor struct {
	cfg Config

	// Adaptive centre of the anchor's resting position.
	centerX, centerY float64
	hasCenter        bool

	// EMA-smoothed pointer position.
	smoothedX, smoothedY float64
	hasSmoothed          bool

	debounce ClickDebouncer
}

// NewProcessor creates a processor with the given tuning.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		cfg:      cfg,
		debounce: NewClickDebouncer(cfg.OpenThresh, cfg.OpenFramesRequired, cfg.ClickCooldown),
	}
}

// Process consumes one frame's landmark sequence and advances the tracker
// state by exactly one step. The frame timestamp `at` drives click cooldown
// timing and must be non-decreasing across calls.
//
// A nil, empty, or incomplete sequence means no detection: the call reports
// ok=false and leaves every piece of state untouched, so brief detector
// dropouts cause the pointer to hold still rather than jump or recentre.
func (p *Processor) Process(lm []Landmark, at time.Time) (PointerUpdate, bool) {
	if !ValidSequence(lm) {
		return PointerUpdate{}, false
	}

	anchor := lm[AnchorIndex]

	// Step 1: adapt the resting centre. The centre initialises on the first
	// detection and afterwards drifts toward the anchor only while the anchor
	// sits near it on both axes, so posture drift is absorbed without eroding
	// deliberate excursions.
	if !p.hasCenter {
		p.centerX = anchor.X
		p.centerY = anchor.Y
		p.hasCenter = true
	} else {
		ex := anchor.X - p.centerX
		ey := anchor.Y - p.centerY
		if math.Abs(ex) < p.cfg.CenterStableThresh && math.Abs(ey) < p.cfg.CenterStableThresh {
			p.centerX += p.cfg.CenterAlpha * ex
			p.centerY += p.cfg.CenterAlpha * ey
		}
	}

	// Step 2: displacement through the soft deadzone, then gain, then clamp
	// around the screen midpoint.
	dx := softDeadzone(anchor.X-p.centerX, p.cfg.Deadzone)
	dy := softDeadzone(anchor.Y-p.centerY, p.cfg.Deadzone)
	targetX := clamp01(0.5 + dx*p.cfg.GainX)
	targetY := clamp01(0.5 + dy*p.cfg.GainY)

	// Step 3: EMA smoothing. The first sample seeds the filter directly.
	if !p.hasSmoothed {
		p.smoothedX = targetX
		p.smoothedY = targetY
		p.hasSmoothed = true
	} else {
		p.smoothedX += p.cfg.SmoothingAlpha * (targetX - p.smoothedX)
		p.smoothedY += p.cfg.SmoothingAlpha * (targetY - p.smoothedY)
	}

	// Step 4: mouth-open ratio into the click debouncer.
	ratio := MouthOpenRatio(lm)
	click := p.debounce.Observe(ratio, at)

	return PointerUpdate{
		X:          Quantize(p.smoothedX),
		Y:          Quantize(p.smoothedY),
		Click:      click,
		MouthRatio: ratio,
	}, true
}

// Center returns the current adaptive centre and whether it has initialised.
func (p *Processor) Center() (x, y float64, ok bool) {
	return p.centerX, p.centerY, p.hasCenter
}

// softDeadzone attenuates displacements inside the deadzone band with a
// linear ramp so the response is continuous at the band edge: |v| = dz maps
// to exactly v both inside and outside the band.
func softDeadzone(v, dz float64) float64 {
	a := math.Abs(v)
	if a >= dz {
		return v
	}
	if dz <= deadzoneFloor {
		return 0
	}
	return v * (a / dz)
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Quantize rounds v to four decimal places, the wire resolution for pointer
// coordinates. The change gate compares positions at this granularity.
func Quantize(v float64) float64 {
	return math.Round(v*10000) / 10000
}
