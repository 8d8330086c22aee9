// Package config provides a Viper-backed implementation of the plugin.Config interface.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement plugin.Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
// Returns the concrete type; callers assign to plugin.Config where needed.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

func (c *ViperConfig) Get(key string) any {
	return c.v.Get(key)
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Sub returns the section at key as its own Config. The section is taken
// from the fully resolved settings, so defaults and environment overrides
// (CG_PLUGINS_DETECTOR_MIN_TEMP) are visible even when the config file only
// sets part of it.
func (c *ViperConfig) Sub(key string) plugin.Config {
	section := lookupSection(c.v.AllSettings(), strings.Split(strings.ToLower(key), "."))
	if section == nil {
		return New(nil)
	}
	sub := viper.New()
	if err := sub.MergeConfigMap(section); err != nil {
		return New(nil)
	}
	return New(sub)
}

func lookupSection(settings map[string]any, path []string) map[string]any {
	cur := settings
	for _, p := range path {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Viper returns the underlying Viper instance for direct access
// (e.g., by the server for top-level config like server.port).
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
