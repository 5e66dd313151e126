package simulated

import (
	"context"
	"sync"

	binding "github.com/goliatone/go-widgetbind/components/binding"
)

// EntitlementFeed is an in-memory EntitlementSource. Subscribers receive the
// current set first and then every change.
type EntitlementFeed struct {
	active *binding.Container[[]string]
}

// NewEntitlementFeed builds a feed holding initial.
func NewEntitlementFeed(initial ...string) *EntitlementFeed {
	return &EntitlementFeed{active: binding.NewContainer(append([]string(nil), initial...))}
}

// Set replaces the active entitlement set.
func (f *EntitlementFeed) Set(active ...string) {
	f.active.Set(append([]string(nil), active...))
}

// Grant adds an entitlement.
func (f *EntitlementFeed) Grant(entitlement string) {
	f.active.Update(func(current []string) ([]string, bool) {
		for _, e := range current {
			if e == entitlement {
				return current, false
			}
		}
		return append(append([]string(nil), current...), entitlement), true
	})
}

// Revoke removes an entitlement.
func (f *EntitlementFeed) Revoke(entitlement string) {
	f.active.Update(func(current []string) ([]string, bool) {
		next := make([]string, 0, len(current))
		for _, e := range current {
			if e != entitlement {
				next = append(next, e)
			}
		}
		return next, len(next) != len(current)
	})
}

// Active returns the current set.
func (f *EntitlementFeed) Active() []string {
	return f.active.Get()
}

// Entitlements implements binding.EntitlementSource.
func (f *EntitlementFeed) Entitlements(ctx context.Context) <-chan []string {
	return follow(ctx, f.active)
}

// PerformanceFeed is an in-memory PerformanceSignal.
type PerformanceFeed struct {
	current *binding.Container[binding.RenderConfig]
}

// NewPerformanceFeed builds a feed starting in normal mode.
func NewPerformanceFeed() *PerformanceFeed {
	return &PerformanceFeed{current: binding.NewContainer(binding.RenderConfig{Mode: binding.RenderModeNormal})}
}

// Set publishes a new render config.
func (f *PerformanceFeed) Set(cfg binding.RenderConfig) {
	f.current.Set(cfg)
}

// RenderConfigs implements binding.PerformanceSignal.
func (f *PerformanceFeed) RenderConfigs(ctx context.Context) <-chan binding.RenderConfig {
	return follow(ctx, f.current)
}

// follow relays a container subscription until ctx is done.
func follow[T any](ctx context.Context, c *binding.Container[T]) <-chan T {
	values, cancel := c.Subscribe()
	out := make(chan T)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-values:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Overrides is an in-memory OverrideStore.
type Overrides struct {
	mu       sync.RWMutex
	bindings map[string]map[string]string
}

// NewOverrides builds an empty store.
func NewOverrides() *Overrides {
	return &Overrides{bindings: map[string]map[string]string{}}
}

// Set stores the provider chosen for a widget slot.
func (o *Overrides) Set(widgetID string, shape binding.DataShape, providerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	slots, ok := o.bindings[widgetID]
	if !ok {
		slots = map[string]string{}
		o.bindings[widgetID] = slots
	}
	slots[string(shape)] = providerID
}

// Bindings implements binding.OverrideStore.
func (o *Overrides) Bindings(widgetID string) map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	slots := o.bindings[widgetID]
	if len(slots) == 0 {
		return nil
	}
	out := make(map[string]string, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}
