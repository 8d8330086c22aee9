package hybrid

import (
	"fmt"
	"math"
	"time"
)

// Config holds the decision parameters of the engine. It is read-only once
// the engine is constructed.
type Config struct {
	MinTemp                 float64       `mapstructure:"min_temp"`
	MaxTemp                 float64       `mapstructure:"max_temp"`
	PersistenceWindowSize   int           `mapstructure:"persistence_window_size"`
	ReconstructionThreshold float64       `mapstructure:"reconstruction_threshold"`
	OracleTimeout           time.Duration `mapstructure:"oracle_timeout"`
}

// DefaultConfig returns the frozen-storage defaults.
func DefaultConfig() Config {
	return Config{
		MinTemp:                 -25.0,
		MaxTemp:                 -18.0,
		PersistenceWindowSize:   2,
		ReconstructionThreshold: 0.2,
		OracleTimeout:           2 * time.Second,
	}
}

// Validate reports the first invalid field, wrapped in ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.MinTemp) || math.IsInf(c.MinTemp, 0):
		return fmt.Errorf("%w: min_temp must be finite, got %v", ErrConfiguration, c.MinTemp)
	case math.IsNaN(c.MaxTemp) || math.IsInf(c.MaxTemp, 0):
		return fmt.Errorf("%w: max_temp must be finite, got %v", ErrConfiguration, c.MaxTemp)
	case c.MinTemp >= c.MaxTemp:
		return fmt.Errorf("%w: min_temp (%v) must be below max_temp (%v)", ErrConfiguration, c.MinTemp, c.MaxTemp)
	case c.PersistenceWindowSize < 1:
		return fmt.Errorf("%w: persistence_window_size must be >= 1, got %d", ErrConfiguration, c.PersistenceWindowSize)
	case math.IsNaN(c.ReconstructionThreshold) || math.IsInf(c.ReconstructionThreshold, 0) || c.ReconstructionThreshold < 0:
		return fmt.Errorf("%w: reconstruction_threshold must be a finite value >= 0, got %v", ErrConfiguration, c.ReconstructionThreshold)
	case c.OracleTimeout <= 0:
		return fmt.Errorf("%w: oracle_timeout must be positive, got %s", ErrConfiguration, c.OracleTimeout)
	}
	return nil
}

// Bounds returns the operational limits as a BoundsPolicy.
func (c Config) Bounds() BoundsPolicy {
	return BoundsPolicy{MinTemp: c.MinTemp, MaxTemp: c.MaxTemp}
}
