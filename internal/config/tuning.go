package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/facecast-labs/facecast/internal/gesture"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the tuning parameters for the gesture pipeline.
// The schema matches the /api/config endpoint, so the file on disk and the
// values a running service reports are the same shape. All fields are
// pointers: omitted fields keep their defaults, so partial configs are safe.
type TuningConfig struct {
	// Pointer mapping params
	SmoothingAlpha     *float64 `json:"smoothing_alpha,omitempty"`
	GainX              *float64 `json:"gain_x,omitempty"`
	GainY              *float64 `json:"gain_y,omitempty"`
	Deadzone           *float64 `json:"deadzone,omitempty"`
	CenterAlpha        *float64 `json:"center_alpha,omitempty"`
	CenterStableThresh *float64 `json:"center_stable_thresh,omitempty"`

	// Click detection params
	OpenThresh          *float64 `json:"open_thresh,omitempty"`
	MouthFramesRequired *int     `json:"mouth_frames_required,omitempty"`
	ClickCooldown       *string  `json:"click_cooldown,omitempty"` // duration string like "350ms"

	// Frame cadence params
	NominalFPS *int `json:"nominal_fps,omitempty"`

	// Stats params
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "30s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
		}
	}

	if c.GainX != nil && *c.GainX <= 0 {
		return fmt.Errorf("gain_x must be positive, got %f", *c.GainX)
	}
	if c.GainY != nil && *c.GainY <= 0 {
		return fmt.Errorf("gain_y must be positive, got %f", *c.GainY)
	}

	if c.Deadzone != nil {
		if *c.Deadzone < 0 || *c.Deadzone >= 1 {
			return fmt.Errorf("deadzone must be in [0, 1), got %f", *c.Deadzone)
		}
	}

	if c.CenterAlpha != nil {
		if *c.CenterAlpha <= 0 || *c.CenterAlpha > 1 {
			return fmt.Errorf("center_alpha must be in (0, 1], got %f", *c.CenterAlpha)
		}
	}

	if c.CenterStableThresh != nil && *c.CenterStableThresh <= 0 {
		return fmt.Errorf("center_stable_thresh must be positive, got %f", *c.CenterStableThresh)
	}

	if c.OpenThresh != nil && *c.OpenThresh <= 0 {
		return fmt.Errorf("open_thresh must be positive, got %f", *c.OpenThresh)
	}

	if c.MouthFramesRequired != nil && *c.MouthFramesRequired < 1 {
		return fmt.Errorf("mouth_frames_required must be at least 1, got %d", *c.MouthFramesRequired)
	}

	// Validate ClickCooldown can be parsed if set
	if c.ClickCooldown != nil && *c.ClickCooldown != "" {
		d, err := time.ParseDuration(*c.ClickCooldown)
		if err != nil {
			return fmt.Errorf("invalid click_cooldown '%s': %w", *c.ClickCooldown, err)
		}
		if d < 0 {
			return fmt.Errorf("click_cooldown must be non-negative, got %s", d)
		}
	}

	if c.NominalFPS != nil {
		if *c.NominalFPS < 1 || *c.NominalFPS > 240 {
			return fmt.Errorf("nominal_fps must be between 1 and 240, got %d", *c.NominalFPS)
		}
	}

	// Validate StatsInterval can be parsed if set
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
	}

	return nil
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return gesture.DefaultSmoothingAlpha
	}
	return *c.SmoothingAlpha
}

// GetGainX returns the gain_x value or the default.
func (c *TuningConfig) GetGainX() float64 {
	if c.GainX == nil {
		return gesture.DefaultGainX
	}
	return *c.GainX
}

// GetGainY returns the gain_y value or the default.
func (c *TuningConfig) GetGainY() float64 {
	if c.GainY == nil {
		return gesture.DefaultGainY
	}
	return *c.GainY
}

// GetDeadzone returns the deadzone value or the default.
func (c *TuningConfig) GetDeadzone() float64 {
	if c.Deadzone == nil {
		return gesture.DefaultDeadzone
	}
	return *c.Deadzone
}

// GetCenterAlpha returns the center_alpha value or the default.
func (c *TuningConfig) GetCenterAlpha() float64 {
	if c.CenterAlpha == nil {
		return gesture.DefaultCenterAlpha
	}
	return *c.CenterAlpha
}

// GetCenterStableThresh returns the center_stable_thresh value or the default.
func (c *TuningConfig) GetCenterStableThresh() float64 {
	if c.CenterStableThresh == nil {
		return gesture.DefaultCenterStableThresh
	}
	return *c.CenterStableThresh
}

// GetOpenThresh returns the open_thresh value or the default.
func (c *TuningConfig) GetOpenThresh() float64 {
	if c.OpenThresh == nil {
		return gesture.DefaultOpenThresh
	}
	return *c.OpenThresh
}

// GetMouthFramesRequired returns the mouth_frames_required value or the default.
func (c *TuningConfig) GetMouthFramesRequired() int {
	if c.MouthFramesRequired == nil {
		return gesture.DefaultOpenFramesRequired
	}
	return *c.MouthFramesRequired
}

// GetClickCooldown parses and returns the ClickCooldown as a time.Duration.
func (c *TuningConfig) GetClickCooldown() time.Duration {
	if c.ClickCooldown == nil || *c.ClickCooldown == "" {
		return gesture.DefaultClickCooldown
	}
	d, err := time.ParseDuration(*c.ClickCooldown)
	if err != nil {
		return gesture.DefaultClickCooldown // default on parse error
	}
	return d
}

// GetNominalFPS returns the nominal_fps value or the default.
func (c *TuningConfig) GetNominalFPS() int {
	if c.NominalFPS == nil {
		return 30 // default
	}
	return *c.NominalFPS
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GestureConfig assembles the processor tuning from the effective values.
func (c *TuningConfig) GestureConfig() gesture.Config {
	return gesture.Config{
		SmoothingAlpha:     c.GetSmoothingAlpha(),
		GainX:              c.GetGainX(),
		GainY:              c.GetGainY(),
		Deadzone:           c.GetDeadzone(),
		CenterAlpha:        c.GetCenterAlpha(),
		CenterStableThresh: c.GetCenterStableThresh(),
		OpenThresh:         c.GetOpenThresh(),
		OpenFramesRequired: c.GetMouthFramesRequired(),
		ClickCooldown:      c.GetClickCooldown(),
	}
}

// Effective returns a fully populated copy with every field resolved to its
// effective value, for reporting over the API.
func (c *TuningConfig) Effective() TuningConfig {
	return TuningConfig{
		SmoothingAlpha:      ptrFloat64(c.GetSmoothingAlpha()),
		GainX:               ptrFloat64(c.GetGainX()),
		GainY:               ptrFloat64(c.GetGainY()),
		Deadzone:            ptrFloat64(c.GetDeadzone()),
		CenterAlpha:         ptrFloat64(c.GetCenterAlpha()),
		CenterStableThresh:  ptrFloat64(c.GetCenterStableThresh()),
		OpenThresh:          ptrFloat64(c.GetOpenThresh()),
		MouthFramesRequired: ptrInt(c.GetMouthFramesRequired()),
		ClickCooldown:       ptrString(c.GetClickCooldown().String()),
		NominalFPS:          ptrInt(c.GetNominalFPS()),
		StatsInterval:       ptrString(c.GetStatsInterval().String()),
	}
}
