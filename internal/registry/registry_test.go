package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/HerbHall/coldguard/pkg/roles"
	"go.uber.org/zap"
)

type stubPlugin struct {
	info    plugin.PluginInfo
	initErr error

	mu      sync.Mutex
	stopped *[]string
	stopFor time.Duration
	stopErr error
	panicAt string
}

func newStub(name string, deps ...string) *stubPlugin {
	return &stubPlugin{info: plugin.PluginInfo{
		Name:         name,
		Version:      "1.0.0",
		Description:  "stub " + name,
		Dependencies: deps,
		APIVersion:   plugin.APIVersionCurrent,
	}}
}

func (p *stubPlugin) Info() plugin.PluginInfo { return p.info }

func (p *stubPlugin) Init(_ context.Context, _ plugin.Dependencies) error {
	if p.panicAt == "Init" {
		panic("boom in Init")
	}
	return p.initErr
}

func (p *stubPlugin) Start(_ context.Context) error {
	if p.panicAt == "Start" {
		panic("boom in Start")
	}
	return nil
}

func (p *stubPlugin) Stop(ctx context.Context) error {
	if p.panicAt == "Stop" {
		panic("boom in Stop")
	}
	if p.stopFor > 0 {
		select {
		case <-time.After(p.stopFor):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.stopped != nil {
		p.mu.Lock()
		*p.stopped = append(*p.stopped, p.info.Name)
		p.mu.Unlock()
	}
	return p.stopErr
}

type routedPlugin struct {
	*stubPlugin
	routes []plugin.Route
}

func (p *routedPlugin) Routes() []plugin.Route { return p.routes }

type subscriberPlugin struct {
	*stubPlugin
	subs []plugin.Subscription
}

func (p *subscriberPlugin) Subscriptions() []plugin.Subscription { return p.subs }

// resolvingPlugin looks up a peer during Init.
type resolvingPlugin struct {
	*stubPlugin
	peer  string
	found bool
}

func (p *resolvingPlugin) Init(_ context.Context, deps plugin.Dependencies) error {
	_, p.found = deps.Plugins.Resolve(p.peer)
	return nil
}

type invalidPlugin struct {
	*stubPlugin
}

func (p *invalidPlugin) ValidateConfig() error { return errors.New("bad config") }

// recordingBus records Subscribe calls and counts unsubscribes.
type recordingBus struct {
	topics   []string
	unsubbed int32
}

func (b *recordingBus) Publish(_ context.Context, _ plugin.Event) error { return nil }
func (b *recordingBus) PublishAsync(_ context.Context, _ plugin.Event) {}
func (b *recordingBus) Subscribe(topic string, _ plugin.EventHandler) func() {
	b.topics = append(b.topics, topic)
	return func() { atomic.AddInt32(&b.unsubbed, 1) }
}
func (b *recordingBus) SubscribeAll(_ plugin.EventHandler) func() { return func() {} }

func noDeps(name string) plugin.Dependencies {
	return plugin.Dependencies{Logger: zap.NewNop().Named(name)}
}

func mustBoot(t *testing.T, reg *Registry) {
	t.Helper()
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := reg.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if err := reg.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
}

func TestRegister_RejectsDuplicateAndEmpty(t *testing.T) {
	reg := New(zap.NewNop())
	p := newStub("detector")
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(p); err == nil {
		t.Error("Register() expected error for duplicate")
	}
	if err := reg.Register(&stubPlugin{}); err == nil {
		t.Error("Register() expected error for empty name")
	}
}

func TestValidate_DependencyOrder(t *testing.T) {
	reg := New(zap.NewNop())
	reg.Register(newStub("ws", "detector"))
	reg.Register(newStub("ingest", "detector"))
	reg.Register(newStub("detector"))

	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	all := reg.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d plugins, want 3", len(all))
	}
	if all[0].Info().Name != "detector" {
		t.Errorf("first plugin = %q, want detector", all[0].Info().Name)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		plugins func() []plugin.Plugin
		wantErr bool
		off     string
	}{
		{
			name: "cycle",
			plugins: func() []plugin.Plugin {
				return []plugin.Plugin{newStub("a", "b"), newStub("b", "a")}
			},
			wantErr: true,
		},
		{
			name: "required missing dependency",
			plugins: func() []plugin.Plugin {
				p := newStub("ingest", "detector")
				p.info.Required = true
				return []plugin.Plugin{p}
			},
			wantErr: true,
		},
		{
			name: "optional missing dependency disabled",
			plugins: func() []plugin.Plugin {
				return []plugin.Plugin{newStub("ingest", "detector")}
			},
			off: "ingest",
		},
		{
			name: "api version too old",
			plugins: func() []plugin.Plugin {
				p := newStub("archive")
				p.info.APIVersion = 0
				return []plugin.Plugin{p}
			},
			off: "archive",
		},
		{
			name: "required api version too new",
			plugins: func() []plugin.Plugin {
				p := newStub("detector")
				p.info.APIVersion = plugin.APIVersionCurrent + 1
				p.info.Required = true
				return []plugin.Plugin{p}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(zap.NewNop())
			for _, p := range tt.plugins() {
				reg.Register(p)
			}
			err := reg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.off != "" && !reg.IsDisabled(tt.off) {
				t.Errorf("expected %q to be disabled", tt.off)
			}
		})
	}
}

func TestValidate_CascadeDisable(t *testing.T) {
	reg := New(zap.NewNop())
	old := newStub("detector")
	old.info.APIVersion = 0
	reg.Register(old)
	reg.Register(newStub("ingest", "detector"))
	reg.Register(newStub("ws", "ingest"))

	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, name := range []string{"detector", "ingest", "ws"} {
		if !reg.IsDisabled(name) {
			t.Errorf("expected %q to be disabled", name)
		}
	}
}

func TestInitAll_OptionalFailureDisables(t *testing.T) {
	reg := New(zap.NewNop())
	bad := newStub("archive")
	bad.initErr = errors.New("dial failed")
	reg.Register(bad)
	reg.Register(newStub("detector"))
	mustBoot(t, reg)

	if !reg.IsDisabled("archive") {
		t.Error("archive should be disabled after Init failure")
	}
	if _, ok := reg.Get("archive"); ok {
		t.Error("Get() should not return disabled plugin")
	}
	if _, ok := reg.Get("detector"); !ok {
		t.Error("Get(detector) should succeed")
	}
}

func TestInitAll_RequiredFailureAborts(t *testing.T) {
	reg := New(zap.NewNop())
	bad := newStub("detector")
	bad.info.Required = true
	bad.initErr = errors.New("model missing")
	reg.Register(bad)
	reg.Validate()

	if err := reg.InitAll(context.Background(), noDeps); err == nil {
		t.Fatal("InitAll() expected error for required plugin")
	}
}

func TestInitAll_ValidatorDisablesOptional(t *testing.T) {
	reg := New(zap.NewNop())
	reg.Register(&invalidPlugin{stubPlugin: newStub("ingest")})
	mustBoot(t, reg)

	if !reg.IsDisabled("ingest") {
		t.Error("ingest should be disabled after ValidateConfig failure")
	}
}

func TestInitAll_WiresSubscriptions(t *testing.T) {
	reg := New(zap.NewNop())
	noop := func(context.Context, plugin.Event) {}
	reg.Register(&subscriberPlugin{
		stubPlugin: newStub("ws"),
		subs: []plugin.Subscription{
			{Topic: "detector.reading.evaluated", Handler: noop},
			{Topic: "detector.alert.raised", Handler: noop},
		},
	})
	reg.Validate()

	bus := &recordingBus{}
	err := reg.InitAll(context.Background(), func(name string) plugin.Dependencies {
		return plugin.Dependencies{Logger: zap.NewNop(), Bus: bus}
	})
	if err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if len(bus.topics) != 2 || bus.topics[0] != "detector.reading.evaluated" || bus.topics[1] != "detector.alert.raised" {
		t.Fatalf("subscribed topics = %v", bus.topics)
	}

	reg.StopAll(context.Background())
	if got := atomic.LoadInt32(&bus.unsubbed); got != 2 {
		t.Errorf("unsubscribed %d, want 2", got)
	}
}

func TestAllRoutes(t *testing.T) {
	reg := New(zap.NewNop())
	reg.Register(&routedPlugin{
		stubPlugin: newStub("detector"),
		routes:     []plugin.Route{{Method: "POST", Path: "/evaluate"}},
	})
	reg.Register(newStub("archive"))
	mustBoot(t, reg)

	routes := reg.AllRoutes()
	if len(routes) != 1 || len(routes["detector"]) != 1 {
		t.Fatalf("AllRoutes() = %v", routes)
	}
}

func TestResolveByRole(t *testing.T) {
	reg := New(zap.NewNop())
	det := newStub("detector")
	det.info.Roles = []string{roles.RoleEvaluator}
	reg.Register(det)
	reg.Register(newStub("ingest"))
	mustBoot(t, reg)

	got := reg.ResolveByRole(roles.RoleEvaluator)
	if len(got) != 1 || got[0].Info().Name != "detector" {
		t.Fatalf("ResolveByRole() = %v", got)
	}
	if len(reg.ResolveByRole(roles.RoleArchive)) != 0 {
		t.Error("expected no archive plugins")
	}
}

func TestStopAll_ReverseOrder(t *testing.T) {
	var stopped []string
	reg := New(zap.NewNop())
	for _, p := range []*stubPlugin{newStub("detector"), newStub("ingest", "detector"), newStub("ws", "ingest")} {
		p.stopped = &stopped
		reg.Register(p)
	}
	mustBoot(t, reg)

	reg.StopAll(context.Background())
	want := []string{"ws", "ingest", "detector"}
	if strings.Join(stopped, ",") != strings.Join(want, ",") {
		t.Errorf("stop order = %v, want %v", stopped, want)
	}
}

func TestStopAll_ErrorAndTimeoutDoNotBlock(t *testing.T) {
	var stopped []string
	reg := New(zap.NewNop())

	failing := newStub("archive")
	failing.stopErr = errors.New("close failed")
	failing.stopped = &stopped
	slow := newStub("ingest")
	slow.stopFor = 5 * time.Second
	slow.stopped = &stopped
	fast := newStub("detector")
	fast.stopped = &stopped

	reg.Register(failing)
	reg.Register(slow)
	reg.Register(fast)
	mustBoot(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	reg.StopAll(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("StopAll took %v, want bounded by context", elapsed)
	}
	joined := strings.Join(stopped, ",")
	if !strings.Contains(joined, "archive") || !strings.Contains(joined, "detector") {
		t.Errorf("stopped = %v, want archive and detector", stopped)
	}
}

func TestLifecycle_PanicRecovery(t *testing.T) {
	for _, phase := range []string{"Init", "Start"} {
		t.Run(phase+"_optional", func(t *testing.T) {
			reg := New(zap.NewNop())
			p := newStub("ingest")
			p.panicAt = phase
			reg.Register(p)
			reg.Register(newStub("detector"))
			mustBoot(t, reg)

			if !reg.IsDisabled("ingest") {
				t.Error("panicking optional plugin should be disabled")
			}
			if reg.IsDisabled("detector") {
				t.Error("detector should remain active")
			}
		})

		t.Run(phase+"_required", func(t *testing.T) {
			reg := New(zap.NewNop())
			p := newStub("detector")
			p.info.Required = true
			p.panicAt = phase
			reg.Register(p)
			reg.Validate()

			err := reg.InitAll(context.Background(), noDeps)
			if err == nil {
				err = reg.StartAll(context.Background())
			}
			if err == nil || !strings.Contains(err.Error(), "panicked") {
				t.Fatalf("error = %v, want panicked", err)
			}
		})
	}

	t.Run("Stop", func(t *testing.T) {
		var stopped []string
		reg := New(zap.NewNop())
		p := newStub("ingest")
		p.panicAt = "Stop"
		normal := newStub("detector")
		normal.stopped = &stopped
		reg.Register(p)
		reg.Register(normal)
		mustBoot(t, reg)

		reg.StopAll(context.Background())
		if len(stopped) != 1 || stopped[0] != "detector" {
			t.Errorf("stopped = %v, want [detector]", stopped)
		}
	})
}

func TestValidate_DeterministicOrder(t *testing.T) {
	for i := 0; i < 10; i++ {
		reg := New(zap.NewNop())
		for _, p := range []*stubPlugin{newStub("ws", "detector"), newStub("archive", "detector"), newStub("ingest", "detector"), newStub("detector")} {
			reg.Register(p)
		}
		if err := reg.Validate(); err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, p := range reg.All() {
			names = append(names, p.Info().Name)
		}
		if got := strings.Join(names, ","); got != "detector,archive,ingest,ws" {
			t.Fatalf("order = %s", got)
		}
	}
}

func TestInitAll_DependentOfFailedPluginDisabled(t *testing.T) {
	reg := New(zap.NewNop())
	det := newStub("detector")
	det.initErr = errors.New("scaler unreadable")
	reg.Register(det)
	reg.Register(newStub("ingest", "detector"))
	mustBoot(t, reg)

	off := reg.Disabled()
	if !strings.Contains(off["detector"], "scaler unreadable") {
		t.Errorf("detector reason = %q", off["detector"])
	}
	if !strings.Contains(off["ingest"], `"detector"`) {
		t.Errorf("ingest reason = %q", off["ingest"])
	}
}

func TestInitAll_PluginCanResolvePeers(t *testing.T) {
	reg := New(zap.NewNop())
	p := &resolvingPlugin{stubPlugin: newStub("ingest", "detector"), peer: "detector"}
	reg.Register(newStub("detector"))
	reg.Register(p)
	if err := reg.Validate(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- reg.InitAll(context.Background(), func(name string) plugin.Dependencies {
			return plugin.Dependencies{Logger: zap.NewNop(), Plugins: reg}
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("InitAll() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("InitAll deadlocked while a plugin resolved a peer")
	}
	if !p.found {
		t.Error("peer not resolvable during Init")
	}
}

func TestStopAll_OnlyStartedPlugins(t *testing.T) {
	var stopped []string
	reg := New(zap.NewNop())
	bad := newStub("archive")
	bad.initErr = errors.New("dial failed")
	bad.stopped = &stopped
	good := newStub("detector")
	good.stopped = &stopped
	reg.Register(bad)
	reg.Register(good)
	mustBoot(t, reg)

	if err := reg.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if strings.Join(stopped, ",") != "detector" {
		t.Errorf("stopped = %v, want [detector]", stopped)
	}
	// A second StopAll has nothing left to stop.
	if err := reg.StopAll(context.Background()); err != nil || len(stopped) != 1 {
		t.Errorf("second StopAll: err=%v stopped=%v", err, stopped)
	}
}

func TestStopAll_JoinsErrors(t *testing.T) {
	reg := New(zap.NewNop())
	a := newStub("archive")
	a.stopErr = errors.New("close failed")
	i := newStub("ingest")
	i.panicAt = "Stop"
	reg.Register(a)
	reg.Register(i)
	mustBoot(t, reg)

	err := reg.StopAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "close failed") || !strings.Contains(err.Error(), "panicked") {
		t.Errorf("StopAll() error = %v", err)
	}
}
