// Package registry owns the coldguard plugin lifecycle: registration,
// dependency ordering, init, event wiring, start and shutdown.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/HerbHall/coldguard/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.PluginResolver = (*Registry)(nil)

// Registry manages the lifecycle of all registered plugins.
//
// Lifecycle methods are called without the registry lock held, so a plugin
// may Resolve its peers from Init or Start.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string          // dependency order, set by Validate
	disabled map[string]string // name -> reason
	started  []string          // in start order
	unsubs   []func()
	logger   *zap.Logger
}

// New creates a new plugin registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]string),
		logger:   logger,
	}
}

// Register adds a plugin. Must be called before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	info := p.Info()
	if info.Name == "" {
		return errors.New("plugin has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}
	r.plugins[info.Name] = p
	r.infos[info.Name] = info
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
		zap.Strings("roles", info.Roles),
	)
	return nil
}

// Validate checks API versions and dependencies, disabling optional plugins
// that cannot run, then fixes the start order. A required plugin that cannot
// run is an error.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		if err := r.checkAPIVersion(name, r.infos[name].APIVersion); err != nil {
			if err := r.disableLocked(name, err.Error()); err != nil {
				return err
			}
		}
	}

	// Disabling one plugin can strand its dependents, so repeat until stable.
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			if _, off := r.disabled[name]; off {
				continue
			}
			reason := r.unmetDependency(name)
			if reason == "" {
				continue
			}
			if err := r.disableLocked(name, reason); err != nil {
				return err
			}
			changed = true
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

func (r *Registry) unmetDependency(name string) string {
	for _, dep := range r.infos[name].Dependencies {
		if _, ok := r.plugins[dep]; !ok {
			return fmt.Sprintf("dependency %q is not registered", dep)
		}
		if _, off := r.disabled[dep]; off {
			return fmt.Sprintf("dependency %q is disabled", dep)
		}
	}
	return ""
}

// disableLocked marks name disabled, or returns an error when it is
// required. Caller holds r.mu.
func (r *Registry) disableLocked(name, reason string) error {
	if r.infos[name].Required {
		return fmt.Errorf("required plugin %q cannot run: %s", name, reason)
	}
	r.disabled[name] = reason
	r.logger.Warn("plugin disabled", zap.String("name", name), zap.String("reason", reason))
	return nil
}

func (r *Registry) disable(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disableLocked(name, reason)
}

// active returns the enabled plugins in dependency order.
func (r *Registry) active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if _, off := r.disabled[name]; !off {
			names = append(names, name)
		}
	}
	return names
}

func (r *Registry) plugin(name string) (plugin.Plugin, plugin.PluginInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[name], r.infos[name]
}

// InitAll initializes enabled plugins in dependency order, validates their
// config, and attaches declared event subscriptions to deps.Bus.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	for _, name := range r.active() {
		if r.IsDisabled(name) {
			continue // a dependency failed earlier in this pass
		}
		if reason := r.depDisabled(name); reason != "" {
			if err := r.disable(name, reason); err != nil {
				return err
			}
			continue
		}

		p, _ := r.plugin(name)
		deps := depsFn(name)
		r.logger.Info("initializing plugin", zap.String("name", name))

		err := safeCall(name, "Init", func() error { return p.Init(ctx, deps) })
		if err == nil {
			if v, ok := p.(plugin.Validator); ok {
				if verr := v.ValidateConfig(); verr != nil {
					err = fmt.Errorf("invalid config: %w", verr)
				}
			}
		}
		if err != nil {
			if derr := r.disable(name, "init: "+err.Error()); derr != nil {
				return fmt.Errorf("required plugin %q failed to initialize: %w", name, err)
			}
			continue
		}

		if es, ok := p.(plugin.EventSubscriber); ok && deps.Bus != nil {
			r.subscribe(name, deps.Bus, es.Subscriptions())
		}
	}
	return nil
}

// depDisabled reports a dependency disabled after Validate, e.g. by a
// failed Init.
func (r *Registry) depDisabled(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dep := range r.infos[name].Dependencies {
		if _, off := r.disabled[dep]; off {
			return fmt.Sprintf("dependency %q is disabled", dep)
		}
	}
	return ""
}

func (r *Registry) subscribe(name string, bus plugin.Subscriber, subs []plugin.Subscription) {
	unsubs := make([]func(), 0, len(subs))
	for _, sub := range subs {
		unsubs = append(unsubs, bus.Subscribe(sub.Topic, sub.Handler))
		r.logger.Debug("plugin subscribed", zap.String("name", name), zap.String("topic", sub.Topic))
	}
	r.mu.Lock()
	r.unsubs = append(r.unsubs, unsubs...)
	r.mu.Unlock()
}

// StartAll starts initialized plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.active() {
		if r.IsDisabled(name) {
			continue
		}
		p, _ := r.plugin(name)
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := safeCall(name, "Start", func() error { return p.Start(ctx) }); err != nil {
			if derr := r.disable(name, "start: "+err.Error()); derr != nil {
				return fmt.Errorf("required plugin %q failed to start: %w", name, err)
			}
			continue
		}
		r.mu.Lock()
		r.started = append(r.started, name)
		r.mu.Unlock()
	}
	return nil
}

// StopAll detaches event subscriptions, then stops started plugins in
// reverse start order. A plugin that fails or panics does not block the
// rest; their errors are joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	unsubs, started := r.unsubs, r.started
	r.unsubs, r.started = nil, nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	var errs []error
	for _, name := range slices.Backward(started) {
		p, _ := r.plugin(name)
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := safeCall(name, "Stop", func() error { return p.Stop(ctx) }); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// safeCall runs a lifecycle method and converts a panic into an error.
func safeCall(name, phase string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plugin %q panicked during %s: %v", name, phase, rec)
		}
	}()
	return fn()
}

// Get returns an enabled plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if _, off := r.disabled[name]; !ok || off {
		return nil, false
	}
	return p, true
}

// Resolve implements plugin.PluginResolver.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) { return r.Get(name) }

// All returns enabled plugins in dependency order.
func (r *Registry) All() []plugin.Plugin {
	names := r.active()
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]plugin.Plugin, 0, len(names))
	for _, name := range names {
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns the HTTP routes of enabled plugins keyed by plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	routes := make(map[string][]plugin.Route)
	for _, name := range r.active() {
		p, _ := r.plugin(name)
		if hp, ok := p.(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[name] = pr
			}
		}
	}
	return routes
}

// ResolveByRole returns enabled plugins declaring role, in dependency order.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	var result []plugin.Plugin
	for _, name := range r.active() {
		p, info := r.plugin(name)
		if slices.Contains(info.Roles, role) {
			result = append(result, p)
		}
	}
	return result
}

// IsDisabled returns whether a plugin has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.disabled[name]
	return off
}

// Disabled returns each disabled plugin with the reason it was disabled.
func (r *Registry) Disabled() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.disabled))
	for k, v := range r.disabled {
		out[k] = v
	}
	return out
}

func (r *Registry) checkAPIVersion(name string, apiVersion int) error {
	switch {
	case apiVersion < plugin.APIVersionMin:
		return fmt.Errorf("plugin API v%d is older than the minimum v%d", apiVersion, plugin.APIVersionMin)
	case apiVersion > plugin.APIVersionCurrent:
		return fmt.Errorf("plugin API v%d is newer than this server supports (v%d)", apiVersion, plugin.APIVersionCurrent)
	case apiVersion < plugin.APIVersionCurrent:
		r.logger.Warn("plugin targets an older plugin API",
			zap.String("name", name),
			zap.Int("api_version", apiVersion),
			zap.Int("current", plugin.APIVersionCurrent),
		)
	}
	return nil
}

// sortedNames returns registered names alphabetically. Caller holds r.mu.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// topologicalSort orders enabled plugins so dependencies come first, using
// Kahn's algorithm with alphabetical tie-breaking. Caller holds r.mu.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, name := range r.sortedNames() {
		if _, off := r.disabled[name]; off {
			continue
		}
		// Validate leaves every dependency of an enabled plugin enabled.
		deps := r.infos[name].Dependencies
		inDegree[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, d := range inDegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var next []string
		for _, d := range dependents[name] {
			if inDegree[d]--; inDegree[d] == 0 {
				next = append(next, d)
			}
		}
		ready = append(ready, next...)
		slices.Sort(ready)
	}

	if len(order) != len(inDegree) {
		var cycled []string
		for name, d := range inDegree {
			if d > 0 {
				cycled = append(cycled, name)
			}
		}
		slices.Sort(cycled)
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}
	return order, nil
}
