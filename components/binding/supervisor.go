package binding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures the Supervisor. Every collaborator is an interface so
// hosts can swap implementations.
type Options struct {
	Providers     *ProviderRegistry
	Widgets       WidgetRegistry
	CrashReporter CrashReporter
	Overrides     OverrideStore
	Entitlements  EntitlementSource
	Performance   PerformanceSignal
	Interceptors  []Interceptor
	RefreshHook   RefreshHook
	Telemetry     Telemetry
	Logger        *zerolog.Logger
	Clock         Clock
	Config        Config
}

// Supervisor owns one isolated task per bound widget.
type Supervisor struct {
	opts     Options
	logger   zerolog.Logger
	resolver *Resolver
	pipeline *Pipeline
	perf     *performanceTracker

	// scope is the supervising context; every widget task is a child.
	scope     context.Context
	cancel    context.CancelFunc
	lifecycle sync.RWMutex
	destroyed bool
	wg        sync.WaitGroup

	records      *shardedMap[WidgetInstance]
	tasks        *shardedMap[*task]
	values       *shardedMap[*Container[WidgetData]]
	statuses     *shardedMap[*Container[Status]]
	errorCounts  *shardedMap[int]
	states       *shardedMap[BindingState]
	entitlements *Container[[]string]
	knownEnts    bool
	entMu        sync.RWMutex
}

type task struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSupervisor builds a Supervisor with safe defaults and starts watching the
// entitlement and performance signals when provided.
func NewSupervisor(opts Options) *Supervisor {
	opts.Config.ApplyDefaults()
	if opts.Providers == nil {
		opts.Providers = NewProviderRegistry()
	}
	if opts.Widgets == nil {
		opts.Widgets = NewStaticWidgetRegistry()
	}
	if opts.CrashReporter == nil {
		opts.CrashReporter = noopCrashReporter{}
	}
	if opts.RefreshHook == nil {
		opts.RefreshHook = noopRefreshHook{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	resolver := NewResolver(opts.Providers, logger)
	scope, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		opts:     opts,
		logger:   logger,
		resolver: resolver,
		pipeline: NewPipeline(resolver,
			WithInterceptors(opts.Interceptors...),
			WithPipelineClock(opts.Clock),
			WithPipelineLogger(logger),
			WithPipelineTelemetry(opts.Telemetry),
			WithPipelineBuffer(opts.Config.EventBuffer),
		),
		perf:         newPerformanceTracker(opts.Config.BaseInterval),
		scope:        scope,
		cancel:       cancel,
		records:      newShardedMap[WidgetInstance](),
		tasks:        newShardedMap[*task](),
		values:       newShardedMap[*Container[WidgetData]](),
		statuses:     newShardedMap[*Container[Status]](),
		errorCounts:  newShardedMap[int](),
		states:       newShardedMap[BindingState](),
		entitlements: NewContainer[[]string](nil),
	}
	if opts.Entitlements != nil {
		s.WatchEntitlements(scope, opts.Entitlements)
	}
	if opts.Performance != nil {
		s.WatchPerformance(scope, opts.Performance)
	}
	return s
}

// Bind starts a fresh binding: the error counter is reset before the shared
// start sequence runs.
func (s *Supervisor) Bind(widget WidgetInstance) error {
	if widget.ID == "" {
		return ErrWidgetIDRequired
	}
	if s.isDestroyed() {
		return ErrSupervisorDestroyed
	}
	s.errorCounts.Store(widget.ID, 0)
	s.statusContainer(widget.ID).Update(func(st Status) (Status, bool) {
		switch st.Kind {
		case StatusConnectionError, StatusProviderMissing, StatusSetupRequired:
			return ReadyStatus(), true
		}
		if len(st.Issues) > 0 {
			st.Issues = nil
			return st, true
		}
		return st, false
	})
	s.opts.Telemetry.Record(s.scope, "binding.widget.bind", map[string]any{
		"widget_id": widget.ID,
		"type_id":   widget.TypeID,
	})
	s.startBinding(widget)
	return nil
}

// startBinding is shared by Bind and the retry path. It never touches the
// error counter.
func (s *Supervisor) startBinding(widget WidgetInstance) {
	widget, reason := s.spawn(widget)
	if reason != "" {
		s.publish(widget, reason, 0, 0)
	}
}

func (s *Supervisor) spawn(widget WidgetInstance) (WidgetInstance, string) {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	if s.destroyed {
		return widget, ""
	}

	s.cancelTask(widget.ID)
	widget = s.applyOverrides(widget)
	s.records.Store(widget.ID, widget)
	s.valueContainer(widget.ID)
	statuses := s.statusContainer(widget.ID)

	renderer, ok := s.opts.Widgets.FindByTypeID(widget.TypeID)
	if !ok {
		statuses.Set(ProviderMissingStatus(widget.TypeID))
		s.states.Store(widget.ID, StateDegraded)
		s.logger.Warn().
			Str("widget_id", widget.ID).
			Str("type_id", widget.TypeID).
			Msg("no renderer registered for widget type")
		return widget, "provider_missing"
	}
	if missing := renderer.MissingSetup(widget); len(missing) > 0 {
		statuses.Set(SetupRequiredStatus(missing...))
		s.states.Store(widget.ID, StateDegraded)
		s.logger.Info().
			Str("widget_id", widget.ID).
			Strs("missing", missing).
			Msg("widget needs setup before binding")
		return widget, "setup_required"
	}
	if active, known := s.knownEntitlements(); known {
		s.applyEntitlements(widget, renderer, toSet(active))
	}

	ctx, cancel := context.WithCancel(s.scope)
	t := &task{ctx: ctx, cancel: cancel}
	if prev, ok := s.tasks.Swap(widget.ID, t); ok {
		prev.cancel()
	}
	s.states.Store(widget.ID, StateBinding)
	s.wg.Add(1)
	go s.run(t, widget, renderer)
	return widget, "bind"
}

func (s *Supervisor) run(t *task, widget WidgetInstance, renderer Renderer) {
	defer s.wg.Done()
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("widget_id", widget.ID).
				Interface("panic", r).
				Msg("widget task panicked")
			if s.isCurrent(widget.ID, t) {
				s.finishFailed(t, widget, &PanicError{Value: r})
			}
		}
	}()

	updates := s.pipeline.Stream(t.ctx, MergeRequest{
		WidgetID: widget.ID,
		Shapes:   renderer.CompatibleDataShapes,
		Bindings: widget.DataSourceBindings,
		Interval: s.perf,
	})

	var retry <-chan time.Time
	failed := false
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-retry:
			if current, ok := s.records.Load(widget.ID); ok && s.isCurrent(widget.ID, t) {
				s.logger.Info().
					Str("widget_id", widget.ID).
					Int("attempt", s.ErrorCount(widget.ID)).
					Msg("retrying widget binding")
				s.startBinding(current)
			}
			return
		case upd, ok := <-updates:
			if !ok {
				if retry == nil {
					s.finishIdle(t, widget)
					return
				}
				updates = nil
				continue
			}
			if !s.isCurrent(widget.ID, t) {
				return
			}
			if upd.Err != nil {
				if errors.Is(upd.Err, context.Canceled) {
					return
				}
				if failed {
					s.logger.Debug().
						Str("widget_id", widget.ID).
						Err(upd.Err).
						Msg("additional provider failure while awaiting retry")
					continue
				}
				failed = true
				delay, again := s.onBindingError(widget, upd.Err)
				if !again {
					t.cancel()
					s.tasks.CompareAndDelete(widget.ID, func(cur *task) bool { return cur == t })
					return
				}
				retry = s.opts.Clock.After(delay)
				continue
			}
			s.applyValue(widget, upd.Value)
		}
	}
}

func (s *Supervisor) applyValue(widget WidgetInstance, value WidgetData) {
	if !value.HasData() {
		return
	}
	if _, bound := s.records.Load(widget.ID); !bound {
		return
	}
	values, ok := s.values.Load(widget.ID)
	if !ok {
		return
	}
	s.errorCounts.UpdateIfPresent(widget.ID, func(int) int { return 0 })
	s.states.UpdateIfPresent(widget.ID, func(st BindingState) BindingState {
		if st == StatePaused {
			return st
		}
		return StateBound
	})
	if statuses, ok := s.statuses.Load(widget.ID); ok {
		statuses.Update(func(st Status) (Status, bool) {
			switch {
			case st.Kind == StatusEntitlementRevoked:
				return st, false
			case st.Kind == StatusReady && len(st.Issues) == 0:
				return st, false
			}
			return ReadyStatus(), true
		})
	}
	// slots filled before a retry stay until unbind
	values.Update(func(current WidgetData) (WidgetData, bool) {
		return current.Merge(value), true
	})
	s.opts.Telemetry.Record(s.scope, "binding.widget.emit", map[string]any{
		"widget_id": widget.ID,
		"type_id":   widget.TypeID,
	})
}

// onBindingError counts the failure, reports it and decides whether another
// attempt is due. The delay doubles per consecutive failure.
func (s *Supervisor) onBindingError(widget WidgetInstance, cause error) (time.Duration, bool) {
	count, bound := s.errorCounts.UpdateIfPresent(widget.ID, func(c int) int { return c + 1 })
	if !bound {
		return 0, false
	}
	s.ReportCrash(widget.ID, widget.TypeID)
	limit := s.opts.Config.retries()
	if count > limit {
		s.logger.Error().
			Str("widget_id", widget.ID).
			Str("type_id", widget.TypeID).
			Int("failures", count).
			Err(cause).
			Msg("widget binding failed, retries exhausted")
		if statuses, ok := s.statuses.Load(widget.ID); ok {
			statuses.Set(ConnectionErrorStatus(cause.Error()))
		}
		s.states.UpdateIfPresent(widget.ID, func(BindingState) BindingState { return StateFailed })
		s.opts.Telemetry.Record(s.scope, "binding.widget.failed", map[string]any{
			"widget_id": widget.ID,
			"type_id":   widget.TypeID,
			"error":     cause.Error(),
		})
		s.publish(widget, "failed", count, 0)
		return 0, false
	}
	delay := backoffDelay(s.opts.Config.RetryBaseDelay, count)
	s.logger.Warn().
		Str("widget_id", widget.ID).
		Str("type_id", widget.TypeID).
		Int("attempt", count).
		Dur("delay", delay).
		Err(cause).
		Msg("widget binding failed, scheduling retry")
	s.states.UpdateIfPresent(widget.ID, func(BindingState) BindingState { return StateRetrying })
	if statuses, ok := s.statuses.Load(widget.ID); ok {
		statuses.Update(func(st Status) (Status, bool) {
			return st.WithIssue(issueCode(cause), cause.Error()), true
		})
	}
	s.opts.Telemetry.Record(s.scope, "binding.widget.retry", map[string]any{
		"widget_id": widget.ID,
		"type_id":   widget.TypeID,
		"attempt":   count,
	})
	s.publish(widget, "retry", count, delay)
	return delay, true
}

// issueCode names the failing slot when the cause carries one.
func issueCode(cause error) string {
	var perr *ProviderError
	if errors.As(cause, &perr) && perr.Shape != "" {
		return "provider_error:" + string(perr.Shape)
	}
	return "binding_error"
}

// backoffDelay returns base * 2^(attempt-1).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<(attempt-1))
}

func (s *Supervisor) finishIdle(t *task, widget WidgetInstance) {
	if !s.tasks.CompareAndDelete(widget.ID, func(cur *task) bool { return cur == t }) {
		return
	}
	s.states.Update(widget.ID, func(st BindingState) BindingState {
		if st == StateBinding {
			return StateBound
		}
		return st
	})
}

func (s *Supervisor) finishFailed(t *task, widget WidgetInstance, cause error) {
	t.cancel()
	s.tasks.CompareAndDelete(widget.ID, func(cur *task) bool { return cur == t })
	delay, again := s.onBindingError(widget, cause)
	if !again {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.scope.Done():
		case <-s.opts.Clock.After(delay):
			current, ok := s.records.Load(widget.ID)
			if !ok || s.State(widget.ID) == StatePaused {
				return
			}
			if _, running := s.tasks.Load(widget.ID); !running {
				s.startBinding(current)
			}
		}
	}()
}

// Unbind cancels the widget task and forgets every trace of the widget.
func (s *Supervisor) Unbind(widgetID string) {
	s.cancelTask(widgetID)
	widget, wasBound := s.records.LoadAndDelete(widgetID)
	if v, ok := s.values.LoadAndDelete(widgetID); ok {
		v.Close()
	}
	if st, ok := s.statuses.LoadAndDelete(widgetID); ok {
		st.Close()
	}
	s.errorCounts.Delete(widgetID)
	s.states.Delete(widgetID)
	if wasBound {
		s.opts.Telemetry.Record(s.scope, "binding.widget.unbind", map[string]any{
			"widget_id": widgetID,
			"type_id":   widget.TypeID,
		})
		s.publish(widget, "unbind", 0, 0)
	}
}

// Rebind overrides the provider for the slot served by providerID and binds
// the widget again from scratch.
func (s *Supervisor) Rebind(widgetID, providerID string) error {
	provider, ok := s.opts.Providers.ProviderByID(providerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	return s.RebindSlot(widgetID, provider.DataType(), providerID)
}

// RebindSlot overrides the provider used for one data shape slot.
func (s *Supervisor) RebindSlot(widgetID string, shape DataShape, providerID string) error {
	widget, ok := s.records.Load(widgetID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWidgetNotBound, widgetID)
	}
	return s.Bind(widget.WithBinding(shape, providerID))
}

// PauseAll cancels every task but keeps the bound widget records.
func (s *Supervisor) PauseAll() {
	for id, t := range s.tasks.Drain() {
		t.cancel()
		s.states.Store(id, StatePaused)
	}
	for _, id := range s.records.Keys() {
		s.states.Store(id, StatePaused)
	}
	s.logger.Info().Int("widgets", s.records.Len()).Msg("paused all widget bindings")
}

// ResumeAll binds every recorded widget again, in widget id order.
func (s *Supervisor) ResumeAll() {
	snapshot := s.records.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := s.Bind(snapshot[id]); err != nil {
			s.logger.Warn().Str("widget_id", id).Err(err).Msg("resume failed")
		}
	}
	s.logger.Info().Int("widgets", len(ids)).Msg("resumed widget bindings")
}

// ReevaluateEntitlements updates entitlement overlays for every bound widget
// without touching their tasks.
func (s *Supervisor) ReevaluateEntitlements(active []string) {
	s.entMu.Lock()
	s.knownEnts = true
	s.entMu.Unlock()
	s.entitlements.Set(append([]string(nil), active...))

	set := toSet(active)
	for _, widget := range s.records.Snapshot() {
		renderer, ok := s.opts.Widgets.FindByTypeID(widget.TypeID)
		if !ok {
			continue
		}
		s.applyEntitlements(widget, renderer, set)
	}
}

func (s *Supervisor) applyEntitlements(widget WidgetInstance, renderer Renderer, active map[string]struct{}) {
	required := renderer.RequiredAnyEntitlement
	satisfied := entitled(required, func(e string) bool {
		_, ok := active[e]
		return ok
	})
	var reason string
	s.statusContainer(widget.ID).Update(func(st Status) (Status, bool) {
		if !satisfied {
			if st.Kind == StatusEntitlementRevoked && st.Entitlement == required[0] {
				return st, false
			}
			reason = "entitlement_revoked"
			return EntitlementRevokedStatus(required[0]), true
		}
		if st.Kind == StatusEntitlementRevoked {
			reason = "entitlement_restored"
			if missing := renderer.MissingSetup(widget); len(missing) > 0 {
				return SetupRequiredStatus(missing...), true
			}
			return ReadyStatus(), true
		}
		return st, false
	})
	if reason == "" {
		return
	}
	s.logger.Info().
		Str("widget_id", widget.ID).
		Str("type_id", widget.TypeID).
		Str("reason", reason).
		Msg("widget entitlement changed")
	s.opts.Telemetry.Record(s.scope, "binding.widget."+reason, map[string]any{
		"widget_id": widget.ID,
		"type_id":   widget.TypeID,
	})
	s.publish(widget, reason, 0, 0)
}

// WatchEntitlements re-evaluates every bound widget whenever source emits.
func (s *Supervisor) WatchEntitlements(ctx context.Context, source EntitlementSource) {
	s.watch(ctx, func(ctx context.Context) {
		changes := source.Entitlements(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case active, ok := <-changes:
				if !ok {
					return
				}
				s.ReevaluateEntitlements(active)
			}
		}
	})
}

// WatchPerformance tracks the latest render config; pipelines read the
// derived interval on every event.
func (s *Supervisor) WatchPerformance(ctx context.Context, signal PerformanceSignal) {
	s.watch(ctx, func(ctx context.Context) {
		configs := signal.RenderConfigs(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-configs:
				if !ok {
					return
				}
				s.perf.Store(cfg)
				s.logger.Debug().
					Str("mode", cfg.Mode.String()).
					Dur("min_interval", s.perf.MinInterval()).
					Msg("render config changed")
			}
		}
	})
}

func (s *Supervisor) watch(ctx context.Context, loop func(context.Context)) {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	if s.destroyed {
		return
	}
	watchCtx, cancel := context.WithCancel(s.scope)
	stop := context.AfterFunc(ctx, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel()
		loop(watchCtx)
	}()
}

// RenderConfig returns the latest render config observed.
func (s *Supervisor) RenderConfig() RenderConfig {
	return s.perf.Current()
}

// ReportCrash forwards a crash to the configured reporter.
func (s *Supervisor) ReportCrash(widgetID, typeID string) {
	s.opts.CrashReporter.ReportCrash(widgetID, typeID)
	s.opts.Telemetry.Record(s.scope, "binding.widget.crash", map[string]any{
		"widget_id": widgetID,
		"type_id":   typeID,
	})
}

// Destroy cancels the supervising scope, waits for every task to stop and
// clears all tracking state.
func (s *Supervisor) Destroy() {
	s.lifecycle.Lock()
	if s.destroyed {
		s.lifecycle.Unlock()
		return
	}
	s.destroyed = true
	s.cancel()
	s.lifecycle.Unlock()
	s.wg.Wait()

	s.tasks.Drain()
	s.records.Drain()
	for _, v := range s.values.Drain() {
		v.Close()
	}
	for _, st := range s.statuses.Drain() {
		st.Close()
	}
	s.errorCounts.Drain()
	s.states.Drain()
	s.entitlements.Close()
	s.logger.Info().Msg("binding supervisor destroyed")
}

// WidgetData returns the live value container of a widget, creating an empty
// one when the widget was never bound.
func (s *Supervisor) WidgetData(widgetID string) *Container[WidgetData] {
	return s.valueContainer(widgetID)
}

// WidgetStatus returns the live status container of a widget, creating a
// Ready one when the widget was never bound.
func (s *Supervisor) WidgetStatus(widgetID string) *Container[Status] {
	return s.statusContainer(widgetID)
}

// ActiveBindings returns the ids of widgets with a running task, sorted.
func (s *Supervisor) ActiveBindings() []string {
	return s.tasks.Keys()
}

// BoundWidgets returns the recorded widgets, sorted by id.
func (s *Supervisor) BoundWidgets() []WidgetInstance {
	snapshot := s.records.Snapshot()
	out := make([]WidgetInstance, 0, len(snapshot))
	for _, w := range snapshot {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// State reports the binding state of a widget.
func (s *Supervisor) State(widgetID string) BindingState {
	st, ok := s.states.Load(widgetID)
	if !ok {
		return StateUnbound
	}
	return st
}

// ErrorCount reports consecutive failures of a widget.
func (s *Supervisor) ErrorCount(widgetID string) int {
	n, _ := s.errorCounts.Load(widgetID)
	return n
}

// Resolver exposes the provider resolver used by the pipelines.
func (s *Supervisor) Resolver() *Resolver {
	return s.resolver
}

func (s *Supervisor) valueContainer(id string) *Container[WidgetData] {
	return s.values.LoadOrCreate(id, func() *Container[WidgetData] {
		return NewContainer(EmptyWidgetData())
	})
}

func (s *Supervisor) statusContainer(id string) *Container[Status] {
	return s.statuses.LoadOrCreate(id, func() *Container[Status] {
		return NewContainer(ReadyStatus())
	})
}

func (s *Supervisor) cancelTask(id string) {
	if t, ok := s.tasks.LoadAndDelete(id); ok {
		t.cancel()
	}
}

func (s *Supervisor) isCurrent(id string, t *task) bool {
	if t.ctx.Err() != nil {
		return false
	}
	cur, ok := s.tasks.Load(id)
	return ok && cur == t
}

func (s *Supervisor) isDestroyed() bool {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	return s.destroyed
}

func (s *Supervisor) knownEntitlements() ([]string, bool) {
	s.entMu.RLock()
	known := s.knownEnts
	s.entMu.RUnlock()
	return s.entitlements.Get(), known
}

func (s *Supervisor) applyOverrides(widget WidgetInstance) WidgetInstance {
	if s.opts.Overrides == nil {
		return widget
	}
	stored := s.opts.Overrides.Bindings(widget.ID)
	if len(stored) == 0 {
		return widget
	}
	merged := make(map[string]string, len(stored)+len(widget.DataSourceBindings))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range widget.DataSourceBindings {
		merged[k] = v
	}
	widget.DataSourceBindings = merged
	return widget
}

func (s *Supervisor) publish(widget WidgetInstance, reason string, attempt int, delay time.Duration) {
	event := BindingEvent{
		ID:       uuid.NewString(),
		WidgetID: widget.ID,
		TypeID:   widget.TypeID,
		Reason:   reason,
		State:    s.State(widget.ID),
		Status:   ReadyStatus(),
		Attempt:  attempt,
		Delay:    delay,
		At:       time.Now().UTC(),
	}
	if statuses, ok := s.statuses.Load(widget.ID); ok {
		event.Status = statuses.Get()
	}
	if err := s.opts.RefreshHook.WidgetUpdated(s.scope, event); err != nil {
		s.logger.Warn().Str("widget_id", widget.ID).Err(err).Msg("refresh hook failed")
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
