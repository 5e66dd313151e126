package binding

import (
	"context"
	"errors"
	"sync"
	"time"
)

// manualClock reports a settable time. Its timers never fire.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

// instantClock fires every timer immediately and remembers requested delays.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *instantClock) Now() time.Time { return time.Now() }

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *instantClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// gateClock hands every timer the same channel; the test releases one waiting
// timer per Open.
type gateClock struct {
	mu        sync.Mutex
	requested int
	fire      chan time.Time
}

func newGateClock() *gateClock {
	return &gateClock{fire: make(chan time.Time)}
}

func (c *gateClock) Now() time.Time { return time.Now() }

func (c *gateClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.requested++
	c.mu.Unlock()
	return c.fire
}

func (c *gateClock) Requested() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested
}

// Open releases one waiting timer and reports whether anyone was waiting.
func (c *gateClock) Open(wait time.Duration) bool {
	select {
	case c.fire <- time.Now():
		return true
	case <-time.After(wait):
		return false
	}
}

// chanEntitlements is an EntitlementSource fed by the test.
type chanEntitlements chan []string

func (c chanEntitlements) Entitlements(context.Context) <-chan []string { return c }

var errUpstream = errors.New("upstream down")

// holdingProvider emits its values, then keeps the stream open until cancelled.
func holdingProvider(spec ProviderSpec, values ...any) *FuncProvider {
	return NewFuncProvider(spec, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		out := make(chan Snapshot)
		go func() {
			defer close(out)
			for _, v := range values {
				select {
				case out <- Reading{Type: spec.DataType, At: time.Now(), Value: v}:
				case <-ctx.Done():
					return
				}
			}
			<-ctx.Done()
		}()
		return out, nil
	})
}

// failingProvider fails every subscription right away.
func failingProvider(spec ProviderSpec) *FuncProvider {
	return NewFuncProvider(spec, func(ctx context.Context) (<-chan Snapshot, <-chan error) {
		out := make(chan Snapshot)
		errs := make(chan error, 1)
		errs <- errUpstream
		close(out)
		return out, errs
	})
}

type recordedEvent struct {
	name    string
	payload map[string]any
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingTelemetry) Record(_ context.Context, event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, payload: payload})
}

func (r *recordingTelemetry) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.name == name {
			n++
		}
	}
	return n
}

type recordingHook struct {
	mu     sync.Mutex
	events []BindingEvent
}

func (h *recordingHook) WidgetUpdated(_ context.Context, event BindingEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHook) Reasons(widgetID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.events {
		if ev.WidgetID == widgetID {
			out = append(out, ev.Reason)
		}
	}
	return out
}

// collect reads updates until the channel closes or timeout elapses.
func collect(ch <-chan Update, timeout time.Duration) []Update {
	var out []Update
	deadline := time.After(timeout)
	for {
		select {
		case upd, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, upd)
		case <-deadline:
			return out
		}
	}
}
