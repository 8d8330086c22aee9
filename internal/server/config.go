package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/HerbHall/coldguard/internal/config"
	"github.com/spf13/viper"
)

// Config is the "server" section.
type Config struct {
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	DataDir   string          `mapstructure:"data_dir"`
	DevMode   bool            `mapstructure:"dev_mode"`
	WSOrigins []string        `mapstructure:"ws_origins"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// MaxBodyBytes caps request bodies; 0 disables the cap.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// TrustProxyHeaders keys rate limiting on X-Forwarded-For.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// RateLimitConfig is the per-client token bucket. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Addr returns the listen address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ServerConfig decodes the "server" section of v.
func ServerConfig(v *viper.Viper) (Config, error) {
	var c Config
	if err := config.New(v).Sub("server").Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("server config: %w", err)
	}
	if c.Port < 0 || c.Port > 65535 {
		return Config{}, fmt.Errorf("server config: port %d out of range", c.Port)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return Config{}, errors.New("server config: rate_limit values must not be negative")
	}
	return c, nil
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.ws_origins", []string{})
	v.SetDefault("server.rate_limit.rps", 100.0)
	v.SetDefault("server.rate_limit.burst", 200)
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", []string{"stderr"})
	v.SetDefault("logging.sampling", false)
	v.SetDefault("database.path", "./data/coldguard.db")

	// Detector thresholds match the cold-chain band the model was trained on.
	v.SetDefault("plugins.detector.min_temp", -25.0)
	v.SetDefault("plugins.detector.max_temp", -18.0)
	v.SetDefault("plugins.detector.persistence_window_size", 2)
	v.SetDefault("plugins.detector.reconstruction_threshold", 0.2)
	v.SetDefault("plugins.detector.oracle_timeout", "2s")
	v.SetDefault("plugins.detector.history_retention", "720h")
	v.SetDefault("plugins.detector.maintenance_interval", "1h")
	v.SetDefault("plugins.detector.scaler.source", "")
	v.SetDefault("plugins.detector.scaler.region", "eu-west-1")
	v.SetDefault("plugins.detector.oracle.kind", "")
	v.SetDefault("plugins.detector.oracle.url", "")
	v.SetDefault("plugins.detector.oracle.endpoint", "")
	v.SetDefault("plugins.detector.oracle.region", "eu-west-1")
	v.SetDefault("plugins.detector.oracle.timeout", "2s")

	v.SetDefault("plugins.ingest.broker_url", "")
	v.SetDefault("plugins.ingest.topic", "coldguard/readings")
	v.SetDefault("plugins.ingest.qos", 1)
	v.SetDefault("plugins.ingest.client_id", "coldguard")
	v.SetDefault("plugins.ingest.timeout", "10s")

	v.SetDefault("plugins.archive.dsn", "")
	v.SetDefault("plugins.archive.max_open_conns", 25)
	v.SetDefault("plugins.archive.max_idle_conns", 10)
	v.SetDefault("plugins.archive.write_timeout", "5s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("coldguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/coldguard")
	}

	// Environment variable support: CG_SERVER_PORT=9090, CG_PLUGINS_DETECTOR_MIN_TEMP=-30
	v.SetEnvPrefix("CG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
