package binding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func speedometer() Renderer {
	return Renderer{TypeID: "speedometer", CompatibleDataShapes: []DataShape{"speed"}}
}

func newTestSupervisor(t *testing.T, opts Options) *Supervisor {
	t.Helper()
	if opts.Config.RetryBaseDelay == 0 {
		opts.Config.RetryBaseDelay = time.Millisecond
	}
	sup := NewSupervisor(opts)
	t.Cleanup(sup.Destroy)
	return sup
}

func TestSupervisorBindDeliversData(t *testing.T) {
	hook := &recordingHook{}
	sup := newTestSupervisor(t, Options{
		Providers:   NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 42)),
		Widgets:     NewStaticWidgetRegistry(speedometer()),
		RefreshHook: hook,
	})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))

	require.Eventually(t, func() bool { return sup.State("w1") == StateBound }, waitFor, 5*time.Millisecond)
	snap, ok := sup.WidgetData("w1").Get().Get("speed")
	require.True(t, ok)
	assert.Equal(t, 42, snap.(Reading).Value)
	assert.True(t, sup.WidgetStatus("w1").Get().IsReady())
	assert.Equal(t, []string{"w1"}, sup.ActiveBindings())
	assert.Contains(t, hook.Reasons("w1"), "bind")
}

func TestSupervisorBindValidation(t *testing.T) {
	sup := NewSupervisor(Options{})
	assert.ErrorIs(t, sup.Bind(WidgetInstance{}), ErrWidgetIDRequired)
	sup.Destroy()
	assert.ErrorIs(t, sup.Bind(WidgetInstance{ID: "w1"}), ErrSupervisorDestroyed)
}

func TestSupervisorUnknownTypeIsProviderMissing(t *testing.T) {
	sup := newTestSupervisor(t, Options{})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "ghost"}))

	status := sup.WidgetStatus("w1").Get()
	assert.Equal(t, StatusProviderMissing, status.Kind)
	assert.Empty(t, sup.ActiveBindings())
	assert.Equal(t, StateDegraded, sup.State("w1"))
	assert.Len(t, sup.BoundWidgets(), 1)
}

func TestSupervisorZeroShapesSettlesEmpty(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Widgets: NewStaticWidgetRegistry(Renderer{TypeID: "clock"}),
	})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "clock"}))

	require.Eventually(t, func() bool { return len(sup.ActiveBindings()) == 0 }, waitFor, 5*time.Millisecond)
	assert.False(t, sup.WidgetData("w1").Get().HasData())
	assert.True(t, sup.WidgetStatus("w1").Get().IsReady())
	assert.Equal(t, 0, sup.ErrorCount("w1"))
}

func TestSupervisorRetriesWithBackoffThenFails(t *testing.T) {
	clock := &instantClock{}
	crashes := NewCrashLedger()
	hook := &recordingHook{}
	telemetry := &recordingTelemetry{}
	sup := NewSupervisor(Options{
		Providers:     NewProviderRegistry(failingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"})),
		Widgets:       NewStaticWidgetRegistry(speedometer()),
		CrashReporter: crashes,
		RefreshHook:   hook,
		Telemetry:     telemetry,
		Clock:         clock,
	})
	t.Cleanup(sup.Destroy)

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))

	require.Eventually(t, func() bool { return sup.State("w1") == StateFailed }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.Delays())
	status := sup.WidgetStatus("w1").Get()
	assert.Equal(t, StatusConnectionError, status.Kind)
	assert.Contains(t, status.Message, errUpstream.Error())
	assert.Equal(t, 4, crashes.Count("speedometer"))
	assert.Equal(t, 4, sup.ErrorCount("w1"))
	assert.Empty(t, sup.ActiveBindings())
	assert.Equal(t, 3, telemetry.Count("binding.widget.retry"))
	assert.Equal(t, 1, telemetry.Count("binding.widget.failed"))
	assert.Contains(t, hook.Reasons("w1"), "failed")
}

func TestSupervisorBindResetsFailure(t *testing.T) {
	clock := &instantClock{}
	sup := NewSupervisor(Options{
		Providers: NewProviderRegistry(failingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"})),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
		Clock:     clock,
		Config:    Config{RetryLimit: -1},
	})
	t.Cleanup(sup.Destroy)

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	require.Eventually(t, func() bool { return sup.State("w1") == StateFailed }, waitFor, 5*time.Millisecond)
	assert.Empty(t, clock.Delays(), "retries disabled")
	assert.Equal(t, 1, sup.ErrorCount("w1"))

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	assert.NotEqual(t, StateFailed, sup.State("w1"))
	require.Eventually(t, func() bool { return sup.State("w1") == StateFailed }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, sup.ErrorCount("w1"), "a fresh bind starts counting from zero")
}

func TestSupervisorIsolatesSiblingFailures(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(
			failingProvider(ProviderSpec{SourceID: "net", DataType: "weather"}),
			holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 50),
		),
		Widgets: NewStaticWidgetRegistry(
			speedometer(),
			Renderer{TypeID: "weather", CompatibleDataShapes: []DataShape{"weather"}},
		),
		Clock:  &instantClock{},
		Config: Config{RetryLimit: 1},
	})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "broken", TypeID: "weather"}))
	require.NoError(t, sup.Bind(WidgetInstance{ID: "fine", TypeID: "speedometer"}))

	require.Eventually(t, func() bool { return sup.State("broken") == StateFailed }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return sup.State("fine") == StateBound }, waitFor, 5*time.Millisecond)
	assert.True(t, sup.WidgetData("fine").Get().HasData())
	assert.True(t, sup.WidgetStatus("fine").Get().IsReady())
	assert.Equal(t, []string{"fine"}, sup.ActiveBindings())
}

func TestSupervisorEntitlementRevokeAndRestore(t *testing.T) {
	hook := &recordingHook{}
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 1)),
		Widgets: NewStaticWidgetRegistry(Renderer{
			TypeID:                 "speedometer",
			CompatibleDataShapes:   []DataShape{"speed"},
			RequiredAnyEntitlement: []string{"pro", "fleet"},
		}),
		RefreshHook: hook,
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))

	sup.ReevaluateEntitlements(nil)
	status := sup.WidgetStatus("w1").Get()
	assert.Equal(t, StatusEntitlementRevoked, status.Kind)
	assert.Equal(t, "pro", status.Entitlement)
	assert.Equal(t, []string{"w1"}, sup.ActiveBindings(), "revocation keeps the task running")

	sup.ReevaluateEntitlements([]string{"fleet"})
	assert.True(t, sup.WidgetStatus("w1").Get().IsReady())
	assert.Equal(t, []string{"w1"}, sup.ActiveBindings())
	assert.Subset(t, hook.Reasons("w1"), []string{"entitlement_revoked", "entitlement_restored"})
}

func TestSupervisorAppliesKnownEntitlementsOnBind(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Widgets: NewStaticWidgetRegistry(Renderer{TypeID: "premium", RequiredAnyEntitlement: []string{"pro"}}),
	})
	sup.ReevaluateEntitlements([]string{"basic"})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "premium"}))
	assert.Equal(t, StatusEntitlementRevoked, sup.WidgetStatus("w1").Get().Kind)
}

func TestSupervisorPauseAndResume(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 1)),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "b", TypeID: "speedometer"}))
	require.NoError(t, sup.Bind(WidgetInstance{ID: "a", TypeID: "speedometer"}))
	require.Eventually(t, func() bool {
		return sup.State("a") == StateBound && sup.State("b") == StateBound
	}, waitFor, 5*time.Millisecond)

	sup.PauseAll()
	assert.Empty(t, sup.ActiveBindings())
	assert.Len(t, sup.BoundWidgets(), 2)
	assert.Equal(t, StatePaused, sup.State("a"))

	sup.ResumeAll()
	assert.Equal(t, []string{"a", "b"}, sup.ActiveBindings())
	require.Eventually(t, func() bool { return sup.State("a") == StateBound }, waitFor, 5*time.Millisecond)
}

func TestSupervisorUnbindForgetsWidget(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 1)),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	require.Eventually(t, func() bool { return sup.WidgetData("w1").Get().HasData() }, waitFor, 5*time.Millisecond)

	values, stop := sup.WidgetData("w1").Subscribe()
	defer stop()
	<-values

	sup.Unbind("w1")
	_, open := <-values
	assert.False(t, open, "unbind closes the value container")
	assert.Empty(t, sup.ActiveBindings())
	assert.Empty(t, sup.BoundWidgets())
	assert.Equal(t, StateUnbound, sup.State("w1"))
	assert.False(t, sup.WidgetData("w1").Get().HasData())
	assert.True(t, sup.WidgetStatus("w1").Get().IsReady())

	sup.Unbind("w1")
}

func TestSupervisorRebindSwitchesProvider(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(
			holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed", Priority: PriorityHardware}, "gps"),
			holdingProvider(ProviderSpec{SourceID: "sim", DataType: "speed", Priority: PrioritySimulated}, "sim"),
		),
		Widgets: NewStaticWidgetRegistry(speedometer()),
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	speedFrom := func() any {
		s, ok := sup.WidgetData("w1").Get().Get("speed")
		if !ok {
			return nil
		}
		return s.(Reading).Value
	}
	require.Eventually(t, func() bool { return speedFrom() == "gps" }, waitFor, 5*time.Millisecond)

	assert.ErrorIs(t, sup.Rebind("w1", "missing"), ErrUnknownProvider)
	assert.ErrorIs(t, sup.Rebind("nope", "sim"), ErrWidgetNotBound)

	require.NoError(t, sup.Rebind("w1", "sim"))
	require.Eventually(t, func() bool { return speedFrom() == "sim" }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "sim", sup.BoundWidgets()[0].Binding("speed"))
}

type staticOverrides map[string]map[string]string

func (s staticOverrides) Bindings(widgetID string) map[string]string { return s[widgetID] }

func TestSupervisorMergesStoredOverrides(t *testing.T) {
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(
			holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed", Priority: PriorityHardware}, "gps"),
			holdingProvider(ProviderSpec{SourceID: "sim", DataType: "speed", Priority: PrioritySimulated}, "sim"),
		),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
		Overrides: staticOverrides{"w1": {"speed": "sim"}},
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))

	require.Eventually(t, func() bool {
		s, ok := sup.WidgetData("w1").Get().Get("speed")
		return ok && s.(Reading).Value == "sim"
	}, waitFor, 5*time.Millisecond)
}

func TestSupervisorDestroyStopsEverything(t *testing.T) {
	sup := NewSupervisor(Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 1)),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))

	sup.Destroy()
	sup.Destroy()
	assert.Empty(t, sup.ActiveBindings())
	assert.Empty(t, sup.BoundWidgets())
}

func slotValue(sup *Supervisor, widgetID string, shape DataShape) any {
	s, ok := sup.WidgetData(widgetID).Get().Get(shape)
	if !ok {
		return nil
	}
	return s.(Reading).Value
}

func TestSupervisorRetryKeepsSlotsFilledBeforeFailure(t *testing.T) {
	var speedSubs, fuelSubs atomic.Int32
	failFuel := make(chan struct{})
	speed := NewFuncProvider(ProviderSpec{SourceID: "obd", DataType: "speed"}, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		if speedSubs.Add(1) > 1 {
			// the slow provider stays silent after the retry
			return holdingProvider(ProviderSpec{SourceID: "obd", DataType: "speed"}).Stream(ctx)
		}
		return holdingProvider(ProviderSpec{SourceID: "obd", DataType: "speed"}, 88).Stream(ctx)
	})
	fuel := NewFuncProvider(ProviderSpec{SourceID: "tank", DataType: "fuel"}, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		if fuelSubs.Add(1) > 1 {
			return holdingProvider(ProviderSpec{SourceID: "tank", DataType: "fuel"}, 2).Stream(ctx)
		}
		out := make(chan Snapshot)
		errs := make(chan error, 1)
		go func() {
			defer close(out)
			select {
			case out <- Reading{Type: "fuel", At: time.Now(), Value: 1}:
			case <-ctx.Done():
				return
			}
			select {
			case <-failFuel:
				errs <- errUpstream
			case <-ctx.Done():
			}
		}()
		return out, errs
	})
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(speed, fuel),
		Widgets:   NewStaticWidgetRegistry(Renderer{TypeID: "dash", CompatibleDataShapes: []DataShape{"speed", "fuel"}}),
		Clock:     &instantClock{},
	})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "dash"}))
	require.Eventually(t, func() bool {
		return slotValue(sup, "w1", "speed") == 88 && slotValue(sup, "w1", "fuel") == 1
	}, waitFor, 5*time.Millisecond)

	close(failFuel)

	require.Eventually(t, func() bool { return slotValue(sup, "w1", "fuel") == 2 }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return speedSubs.Load() == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 88, slotValue(sup, "w1", "speed"), "the retry keeps the speed slot")
	assert.Equal(t, []DataShape{"fuel", "speed"}, sup.WidgetData("w1").Get().Shapes())
	assert.Equal(t, 0, sup.ErrorCount("w1"))
	assert.Empty(t, sup.WidgetStatus("w1").Get().Issues)
}

func TestSupervisorEmissionResetsErrorCount(t *testing.T) {
	var subs atomic.Int32
	flaky := NewFuncProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		out := make(chan Snapshot)
		errs := make(chan error, 1)
		n := subs.Add(1)
		go func() {
			defer close(out)
			if n > 1 {
				select {
				case out <- Reading{Type: "speed", At: time.Now(), Value: 5}:
				case <-ctx.Done():
					return
				}
			}
			errs <- errUpstream
		}()
		return out, errs
	})
	clock := newGateClock()
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(flaky),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
		Clock:     clock,
		Config:    Config{RetryLimit: 1},
	})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	require.Eventually(t, func() bool {
		return sup.State("w1") == StateRetrying && clock.Requested() == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, sup.ErrorCount("w1"))
	status := sup.WidgetStatus("w1").Get()
	assert.True(t, status.IsReady(), "a pending retry keeps the widget usable")
	require.Len(t, status.Issues, 1)
	assert.Equal(t, "provider_error:speed", status.Issues[0].Code)

	require.True(t, clock.Open(waitFor))

	// the value between both failures resets the counter, so the second
	// failure schedules another retry instead of exhausting the limit
	require.Eventually(t, func() bool { return clock.Requested() == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, StateRetrying, sup.State("w1"))
	assert.Equal(t, 1, sup.ErrorCount("w1"))
	assert.Equal(t, 5, slotValue(sup, "w1", "speed"))
}

func TestSupervisorUnbindDropsPendingRetry(t *testing.T) {
	var subs atomic.Int32
	failing := failingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"})
	counted := NewFuncProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		subs.Add(1)
		return failing.Stream(ctx)
	})
	clock := newGateClock()
	crashes := NewCrashLedger()
	sup := newTestSupervisor(t, Options{
		Providers:     NewProviderRegistry(counted),
		Widgets:       NewStaticWidgetRegistry(speedometer()),
		CrashReporter: crashes,
		Clock:         clock,
	})

	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	require.Eventually(t, func() bool { return clock.Requested() == 1 }, waitFor, 5*time.Millisecond)

	sup.Unbind("w1")
	clock.Open(50 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), subs.Load(), "no new subscription after unbind")
	assert.Equal(t, 1, clock.Requested())
	assert.Empty(t, sup.ActiveBindings())
	assert.Empty(t, sup.BoundWidgets())
	assert.Equal(t, StateUnbound, sup.State("w1"))
	assert.Equal(t, 0, sup.ErrorCount("w1"))
	assert.Equal(t, 1, crashes.Count("speedometer"))
}

func TestSupervisorLateUpdatesDoNotReviveUnboundWidget(t *testing.T) {
	crashes := NewCrashLedger()
	sup := newTestSupervisor(t, Options{
		Providers:     NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"})),
		Widgets:       NewStaticWidgetRegistry(speedometer()),
		CrashReporter: crashes,
	})
	widget := WidgetInstance{ID: "w1", TypeID: "speedometer"}
	require.NoError(t, sup.Bind(widget))
	sup.Unbind("w1")

	// a reader asking for the value recreates an empty container
	sup.WidgetData("w1")
	sup.applyValue(widget, EmptyWidgetData().With(Reading{Type: "speed", Value: 1}))
	_, again := sup.onBindingError(widget, errUpstream)

	assert.False(t, again)
	assert.Equal(t, StateUnbound, sup.State("w1"))
	assert.Equal(t, 0, sup.ErrorCount("w1"))
	assert.Zero(t, crashes.Count("speedometer"))
}

func TestSupervisorConcurrentBindsKeepOneSubscription(t *testing.T) {
	var live atomic.Int32
	provider := NewFuncProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		live.Add(1)
		out := make(chan Snapshot)
		go func() {
			defer close(out)
			<-ctx.Done()
			live.Add(-1)
		}()
		return out, nil
	})
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(provider),
		Widgets:   NewStaticWidgetRegistry(speedometer()),
	})

	for range 20 {
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
			}()
		}
		wg.Wait()
	}

	require.Eventually(t, func() bool { return live.Load() == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"w1"}, sup.ActiveBindings())
}

func TestSupervisorWatchesEntitlementSource(t *testing.T) {
	source := make(chanEntitlements)
	hook := &recordingHook{}
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 1)),
		Widgets: NewStaticWidgetRegistry(Renderer{
			TypeID:                 "speedometer",
			CompatibleDataShapes:   []DataShape{"speed"},
			RequiredAnyEntitlement: []string{"pro"},
		}),
		Entitlements: source,
		RefreshHook:  hook,
	})
	require.NoError(t, sup.Bind(WidgetInstance{ID: "w1", TypeID: "speedometer"}))
	require.Eventually(t, func() bool { return sup.State("w1") == StateBound }, waitFor, 5*time.Millisecond)

	source <- []string{"basic"}
	require.Eventually(t, func() bool {
		return sup.WidgetStatus("w1").Get().Kind == StatusEntitlementRevoked
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"w1"}, sup.ActiveBindings())

	source <- []string{"basic", "pro"}
	require.Eventually(t, func() bool { return sup.WidgetStatus("w1").Get().IsReady() }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"w1"}, sup.ActiveBindings())
	assert.Subset(t, hook.Reasons("w1"), []string{"entitlement_revoked", "entitlement_restored"})

	close(source)
}

func TestSupervisorSetupRequiredUntilSettingsFilled(t *testing.T) {
	hook := &recordingHook{}
	sup := newTestSupervisor(t, Options{
		Providers: NewProviderRegistry(holdingProvider(ProviderSpec{SourceID: "gps", DataType: "speed"}, 3)),
		Widgets: NewStaticWidgetRegistry(Renderer{
			TypeID:               "speedometer",
			CompatibleDataShapes: []DataShape{"speed"},
			Setup:                []string{"vehicle_id", "unit"},
		}),
		RefreshHook: hook,
	})

	require.NoError(t, sup.Bind(WidgetInstance{
		ID:       "w1",
		TypeID:   "speedometer",
		Settings: map[string]string{"unit": "kmh"},
	}))
	status := sup.WidgetStatus("w1").Get()
	assert.Equal(t, StatusSetupRequired, status.Kind)
	assert.Equal(t, []string{"vehicle_id"}, status.Requirements)
	assert.Equal(t, StateDegraded, sup.State("w1"))
	assert.Empty(t, sup.ActiveBindings())
	assert.Contains(t, hook.Reasons("w1"), "setup_required")

	require.NoError(t, sup.Bind(WidgetInstance{
		ID:       "w1",
		TypeID:   "speedometer",
		Settings: map[string]string{"unit": "kmh", "vehicle_id": "van-7"},
	}))
	assert.True(t, sup.WidgetStatus("w1").Get().IsReady())
	require.Eventually(t, func() bool { return slotValue(sup, "w1", "speed") == 3 }, waitFor, 5*time.Millisecond)
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(time.Second, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(time.Second, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(time.Second, 3))
	assert.Equal(t, time.Second, backoffDelay(time.Second, 0))
}
