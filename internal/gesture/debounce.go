package gesture

import "time"

// ClickDebouncer converts the noisy per-frame mouth-open ratio into discrete
// click events with hysteresis: a click needs several consecutive open frames
// to fire, fires at most once per open episode, and respects a global
// cooldown between clicks.
type ClickDebouncer struct {
	openThresh     float64
	framesRequired int
	cooldown       time.Duration

	openFrames int       // Consecutive frames above threshold
	armed      bool      // Latched for the current open episode
	lastClick  time.Time // Zero until the first click fires
}

// NewClickDebouncer creates a debouncer with the given hysteresis parameters.
func NewClickDebouncer(openThresh float64, framesRequired int, cooldown time.Duration) ClickDebouncer {
	return ClickDebouncer{
		openThresh:     openThresh,
		framesRequired: framesRequired,
		cooldown:       cooldown,
	}
}

// Observe feeds one frame's ratio and reports whether a click fired at `at`.
//
// An open episode starts when the ratio first exceeds the threshold and ends
// when it drops back to or below it. The episode latch is set at the click
// candidate instant whether or not the cooldown allows the click, so an
// episode whose click was suppressed never retries: the mouth must close and
// reopen to produce another candidate.
func (d *ClickDebouncer) Observe(ratio float64, at time.Time) bool {
	if ratio <= d.openThresh {
		d.openFrames = 0
		d.armed = false
		return false
	}

	d.openFrames++
	if d.openFrames < d.framesRequired || d.armed {
		return false
	}

	d.armed = true
	if at.Sub(d.lastClick) <= d.cooldown {
		return false
	}
	d.lastClick = at
	return true
}

// Armed reports whether the current open episode has already produced its
// click candidate.
func (d *ClickDebouncer) Armed() bool {
	return d.armed
}
