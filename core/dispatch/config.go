package dispatch

import (
	"fmt"
	"time"
)

const (
	// ShortHorizonOmit drops minimum up/down constraints that do not fit in
	// the horizon and logs a warning.
	ShortHorizonOmit = "omit"
	// ShortHorizonReject refuses horizons shorter than max(min up, min down).
	ShortHorizonReject = "reject"
)

// Config defines optimizer settings.
type Config struct {
	TimeLimitSeconds int     `json:"time_limit_seconds"`
	BypassTolerance  float64 `json:"bypass_tolerance"`
	ValueTolerance   float64 `json:"value_tolerance"`
	ShortHorizon     string  `json:"short_horizon"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TimeLimitSeconds == 0 {
		c.TimeLimitSeconds = 120
	}
	if c.BypassTolerance == 0 {
		c.BypassTolerance = 0.001
	}
	if c.ValueTolerance == 0 {
		c.ValueTolerance = 1e-9
	}
	if c.ShortHorizon == "" {
		c.ShortHorizon = ShortHorizonOmit
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TimeLimitSeconds < 0 {
		return fmt.Errorf("dispatch: time_limit_seconds must be >= 0")
	}
	if c.BypassTolerance < 0 || c.ValueTolerance < 0 {
		return fmt.Errorf("dispatch: tolerances must be >= 0")
	}
	switch c.ShortHorizon {
	case ShortHorizonOmit, ShortHorizonReject:
	default:
		return fmt.Errorf("dispatch: unknown short_horizon policy %q", c.ShortHorizon)
	}
	return nil
}

// TimeLimit is the wall-clock budget handed to the solver. Zero means none.
func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitSeconds) * time.Second
}

// Tolerances returns the clipping tolerances used by the projector.
func (c Config) Tolerances() Tolerances {
	return Tolerances{Value: c.ValueTolerance, Bypass: c.BypassTolerance}
}
