package ingest

import "time"

// Config holds MQTT subscriber configuration.
type Config struct {
	BrokerURL string        `mapstructure:"broker_url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"` //nolint:gosec // G101: config field name, not a credential
	ClientID  string        `mapstructure:"client_id"`
	Topic     string        `mapstructure:"topic"`
	QoS       byte          `mapstructure:"qos"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns defaults for the ingest subscriber. An empty broker
// URL leaves the plugin idle.
func DefaultConfig() Config {
	return Config{
		ClientID: "coldguard",
		Topic:    "coldguard/readings",
		QoS:      1,
		Timeout:  10 * time.Second,
	}
}
