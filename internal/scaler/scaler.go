// Package scaler applies a fitted single-feature scaling transform to raw
// temperatures before they are handed to the reconstruction model.
package scaler

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotLoaded is returned by Transform before any parameters are set.
var ErrNotLoaded = errors.New("scaler parameters not loaded")

// Kind names a scaling transform.
type Kind string

const (
	KindStandard Kind = "standard" // (x - mean) / scale
	KindMinMax   Kind = "minmax"   // x*scale + min
	KindRobust   Kind = "robust"   // (x - center) / scale
)

// Params are the fitted attributes exported from the training pipeline.
// Arrays mirror the exported JSON; only the first feature is used.
type Params struct {
	Kind   Kind      `json:"kind" mapstructure:"kind"`
	Mean   []float64 `json:"mean,omitempty" mapstructure:"mean"`
	Center []float64 `json:"center,omitempty" mapstructure:"center"`
	Min    []float64 `json:"min,omitempty" mapstructure:"min"`
	Scale  []float64 `json:"scale" mapstructure:"scale"`
}

// IsZero reports whether no parameters were supplied.
func (p Params) IsZero() bool {
	return p.Kind == "" && len(p.Scale) == 0 && len(p.Mean) == 0 && len(p.Center) == 0 && len(p.Min) == 0
}

// Validate checks that the fields required by Kind are present.
func (p Params) Validate() error {
	if len(p.Scale) == 0 {
		return fmt.Errorf("scaler %q: scale is required", p.Kind)
	}
	switch p.effectiveKind() {
	case KindStandard:
		if len(p.Mean) == 0 {
			return fmt.Errorf("scaler %q: mean is required", p.Kind)
		}
		if p.Scale[0] == 0 {
			return fmt.Errorf("scaler %q: scale must be non-zero", p.Kind)
		}
	case KindMinMax:
		if len(p.Min) == 0 {
			return fmt.Errorf("scaler %q: min is required", p.Kind)
		}
	case KindRobust:
		if len(p.Center) == 0 {
			return fmt.Errorf("scaler %q: center is required", p.Kind)
		}
	default:
		return fmt.Errorf("unknown scaler kind %q", p.Kind)
	}
	return nil
}

// effectiveKind resolves an empty kind from the fields present, so that a
// bare {"center": [...], "scale": [...]} file is read as a robust scaler.
func (p Params) effectiveKind() Kind {
	if p.Kind != "" {
		return p.Kind
	}
	switch {
	case len(p.Center) > 0:
		return KindRobust
	case len(p.Mean) > 0:
		return KindStandard
	case len(p.Min) > 0:
		return KindMinMax
	}
	return ""
}

// Scaler holds the active parameters. Parameters may be swapped at runtime
// by Set; Transform always sees a consistent set.
type Scaler struct {
	mu     sync.RWMutex
	params *Params
}

// New returns an empty Scaler. Transform fails with ErrNotLoaded until Set is called.
func New() *Scaler {
	return &Scaler{}
}

// FromParams returns a Scaler loaded with p.
func FromParams(p Params) (*Scaler, error) {
	s := New()
	if err := s.Set(p); err != nil {
		return nil, err
	}
	return s, nil
}

// Set validates and installs p.
func (s *Scaler) Set(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Kind = p.effectiveKind()
	s.mu.Lock()
	s.params = &p
	s.mu.Unlock()
	return nil
}

// Loaded reports whether parameters are installed.
func (s *Scaler) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params != nil
}

// Params returns a copy of the installed parameters.
func (s *Scaler) Params() (Params, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.params == nil {
		return Params{}, false
	}
	return *s.params, true
}

// Transform scales a raw reading.
func (s *Scaler) Transform(raw float64) (float64, error) {
	s.mu.RLock()
	p := s.params
	s.mu.RUnlock()
	if p == nil {
		return 0, ErrNotLoaded
	}

	scale := p.Scale[0]
	switch p.Kind {
	case KindStandard:
		return (raw - p.Mean[0]) / scale, nil
	case KindMinMax:
		return raw*scale + p.Min[0], nil
	case KindRobust:
		// A zero interquartile range only centers the feature.
		if scale == 0 {
			return raw - p.Center[0], nil
		}
		return (raw - p.Center[0]) / scale, nil
	}
	return 0, fmt.Errorf("unknown scaler kind %q", p.Kind)
}
