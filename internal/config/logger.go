package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig is the "logging" section.
type LoggingConfig struct {
	Level  string   `mapstructure:"level"`  // debug, info, warn, error
	Format string   `mapstructure:"format"` // json or console
	Output []string `mapstructure:"output"` // stdout, stderr or file paths
	// Sampling thins repeated identical entries.
	Sampling bool `mapstructure:"sampling"`
}

// DefaultLogging mirrors the defaults registered by server.LoadConfig.
func DefaultLogging() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "json", Output: []string{"stderr"}}
}

// NewLogger builds the process logger from the "logging" section of v.
// Every entry carries service=coldguard.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	lc := DefaultLogging()
	if v != nil {
		if err := New(v).Sub("logging").Unmarshal(&lc); err != nil {
			return nil, fmt.Errorf("logging config: %w", err)
		}
	}
	cfg, err := lc.zapConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Build(zap.Fields(zap.String("service", "coldguard")))
}

func (lc LoggingConfig) zapConfig() (zap.Config, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(lc.Level))); err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(lc.Format) {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return zap.Config{}, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", lc.Format)
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	if len(lc.Output) > 0 {
		cfg.OutputPaths = lc.Output
	}
	if !lc.Sampling {
		cfg.Sampling = nil
	}
	return cfg, nil
}
