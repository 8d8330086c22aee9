package detector

import (
	"fmt"
	"time"

	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/internal/oracle"
	"github.com/HerbHall/coldguard/internal/scaler"
)

// Config holds configuration for the detector plugin.
type Config struct {
	hybrid.Config `mapstructure:",squash"`

	HistoryRetention    time.Duration `mapstructure:"history_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`

	Scaler ScalerConfig  `mapstructure:"scaler"`
	Oracle oracle.Config `mapstructure:"oracle"`
}

// ScalerConfig locates the fitted scaler parameters. Source wins over inline Params.
type ScalerConfig struct {
	Source string        `mapstructure:"source"` // local path or s3://bucket/key
	Region string        `mapstructure:"region"`
	Params scaler.Params `mapstructure:"params"`
}

// DefaultConfig returns the defaults for the detector plugin.
func DefaultConfig() Config {
	return Config{
		Config:              hybrid.DefaultConfig(),
		HistoryRetention:    30 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
		Scaler:              ScalerConfig{Region: "eu-west-1"},
		Oracle:              oracle.DefaultConfig(),
	}
}

// Validate checks the decision thresholds and the housekeeping intervals.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.HistoryRetention <= 0 {
		return fmt.Errorf("%w: history_retention must be positive, got %s", hybrid.ErrConfiguration, c.HistoryRetention)
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("%w: maintenance_interval must be positive, got %s", hybrid.ErrConfiguration, c.MaintenanceInterval)
	}
	return nil
}
