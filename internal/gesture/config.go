package gesture

import "time"

// Default tuning values. These mirror config/tuning.defaults.json and are
// the values the pipeline runs with when no overrides are supplied.
const (
	// DefaultSmoothingAlpha is the EMA coefficient for pointer smoothing.
	// Higher values track the raw signal more tightly.
	DefaultSmoothingAlpha = 0.75
	// DefaultGainX and DefaultGainY amplify small head motion into full-range
	// pointer travel. Y runs slightly hotter because vertical head motion has
	// a smaller comfortable range than horizontal.
	DefaultGainX = 2.8
	DefaultGainY = 3.2
	// DefaultDeadzone is the half-width of the soft deadzone band around the
	// adaptive centre, in normalised image units.
	DefaultDeadzone = 0.010
	// DefaultCenterAlpha is the adaptation rate of the drifting centre.
	DefaultCenterAlpha = 0.02
	// DefaultCenterStableThresh bounds the per-axis error inside which the
	// centre is allowed to adapt. Larger excursions are deliberate pointer
	// motion and must not drag the centre along.
	DefaultCenterStableThresh = 0.02
	// DefaultOpenThresh is the mouth-open ratio above which a frame counts
	// toward a click.
	DefaultOpenThresh = 0.26
	// DefaultOpenFramesRequired is the number of consecutive open frames
	// needed before a click candidate fires.
	DefaultOpenFramesRequired = 2
	// DefaultClickCooldown is the minimum spacing between emitted clicks.
	DefaultClickCooldown = 350 * time.Millisecond
)

// deadzoneFloor is the deadzone width below which the band collapses to a
// hard zero instead of a linear ramp, avoiding division blow-up.
const deadzoneFloor = 1e-9

// Config holds the tuning parameters for a Processor. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	SmoothingAlpha     float64       // EMA coefficient in (0, 1]
	GainX              float64       // Horizontal displacement gain
	GainY              float64       // Vertical displacement gain
	Deadzone           float64       // Soft deadzone half-width (normalised units)
	CenterAlpha        float64       // Centre adaptation rate
	CenterStableThresh float64       // Max per-axis error for centre adaptation
	OpenThresh         float64       // Mouth-open ratio threshold
	OpenFramesRequired int           // Consecutive open frames before a click
	ClickCooldown      time.Duration // Minimum spacing between clicks
}

// DefaultConfig returns the canonical tuning.
func DefaultConfig() Config {
	return Config{
		SmoothingAlpha:     DefaultSmoothingAlpha,
		GainX:              DefaultGainX,
		GainY:              DefaultGainY,
		Deadzone:           DefaultDeadzone,
		CenterAlpha:        DefaultCenterAlpha,
		CenterStableThresh: DefaultCenterStableThresh,
		OpenThresh:         DefaultOpenThresh,
		OpenFramesRequired: DefaultOpenFramesRequired,
		ClickCooldown:      DefaultClickCooldown,
	}
}
