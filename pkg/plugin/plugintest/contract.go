// Package plugintest holds the behavioral contract every coldguard plugin
// must satisfy, plus checks for the optional interfaces it implements.
package plugintest

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/HerbHall/coldguard/pkg/plugin"
	"go.uber.org/zap"
)

var healthStates = map[string]bool{"healthy": true, "degraded": true, "unhealthy": true}

// TestPluginContract exercises a fresh plugin from factory for each case:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return ingest.New() })
//	}
//
// Plugins are initialized without config, store, or peers, so every module
// must come up on its defaults alone.
func TestPluginContract(t *testing.T, factory func() plugin.Plugin) {
	t.Helper()

	t.Run("Info", func(t *testing.T) {
		info := factory().Info()
		if info.Name == "" || strings.ContainsAny(info.Name, " /") {
			t.Errorf("Info().Name = %q, want a non-empty path segment", info.Name)
		}
		if info.Version == "" {
			t.Error("Info().Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			t.Errorf("Info().APIVersion = %d, want %d..%d", info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		}
		for _, d := range info.Dependencies {
			if d == info.Name {
				t.Errorf("plugin %q depends on itself", info.Name)
			}
		}
		for _, r := range info.Roles {
			if r == "" {
				t.Error("Info().Roles contains an empty role")
			}
		}
		if again := factory().Info(); again.Name != info.Name || again.Version != info.Version {
			t.Error("Info() must be stable across instances")
		}
	})

	t.Run("Lifecycle", func(t *testing.T) {
		p := factory()
		ctx := context.Background()
		if err := p.Init(ctx, testDeps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := p.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if err := p.Stop(ctx); err != nil {
			t.Errorf("second Stop() error = %v", err)
		}
	})

	t.Run("Stop_without_Start", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), testDeps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() without Start error = %v", err)
		}
	})

	t.Run("Optional_interfaces", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), testDeps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		defer p.Stop(context.Background())

		if v, ok := p.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				t.Errorf("ValidateConfig() on defaults = %v", err)
			}
		}
		if hc, ok := p.(plugin.HealthChecker); ok {
			if st := hc.Health(context.Background()); !healthStates[st.Status] {
				t.Errorf("Health().Status = %q", st.Status)
			}
		}
		if hp, ok := p.(plugin.HTTPProvider); ok {
			for _, p := range routeProblems(hp.Routes()) {
				t.Errorf("route %s", p)
			}
		}
		if es, ok := p.(plugin.EventSubscriber); ok {
			for _, s := range es.Subscriptions() {
				if s.Topic == "" || s.Handler == nil {
					t.Errorf("subscription %+v needs a topic and a handler", s)
				}
			}
		}
	})
}

// routeProblems lists what is wrong with a plugin's route table.
func routeProblems(routes []plugin.Route) []string {
	var problems []string
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		key := r.Method + " " + r.Path
		switch {
		case !methods[r.Method]:
			problems = append(problems, key+": unsupported method")
		case !strings.HasPrefix(r.Path, "/"):
			problems = append(problems, key+": path must start with /")
		case r.Handler == nil:
			problems = append(problems, key+": nil handler")
		case seen[key]:
			problems = append(problems, key+": registered twice")
		}
		seen[key] = true
	}
	return problems
}

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func testDeps(name string) plugin.Dependencies {
	return plugin.Dependencies{
		Logger: zap.NewNop().Named(name),
		Bus:    nopBus{},
	}
}

type nopBus struct{}

func (nopBus) Publish(context.Context, plugin.Event) error  { return nil }
func (nopBus) PublishAsync(context.Context, plugin.Event)   {}
func (nopBus) Subscribe(string, plugin.EventHandler) func() { return func() {} }
func (nopBus) SubscribeAll(plugin.EventHandler) func()      { return func() {} }
