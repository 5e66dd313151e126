package binding

import (
	"fmt"
	"sort"
	"sync"
)

// RendererHook lets packages register renderers during init().
type RendererHook func(reg *StaticWidgetRegistry) error

var (
	globalHookMu sync.Mutex
	globalHooks  []RendererHook
)

// RegisterRendererHook registers a hook executed against new registries.
func RegisterRendererHook(h RendererHook) {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	globalHooks = append(globalHooks, h)
}

// StaticWidgetRegistry is an in-memory WidgetRegistry.
type StaticWidgetRegistry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewStaticWidgetRegistry builds a registry holding renderers and applies
// global hooks.
func NewStaticWidgetRegistry(renderers ...Renderer) *StaticWidgetRegistry {
	reg := &StaticWidgetRegistry{renderers: map[string]Renderer{}}
	for _, r := range renderers {
		_ = reg.RegisterRenderer(r)
	}
	_ = reg.ApplyHooks()
	return reg
}

// ApplyHooks executes registered renderer hooks.
func (r *StaticWidgetRegistry) ApplyHooks() error {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	for _, hook := range globalHooks {
		if err := hook(r); err != nil {
			return err
		}
	}
	return nil
}

// RegisterRenderer stores a renderer, replacing any with the same type id.
func (r *StaticWidgetRegistry) RegisterRenderer(renderer Renderer) error {
	if renderer.TypeID == "" {
		return fmt.Errorf("binding: renderer type id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[renderer.TypeID] = renderer
	return nil
}

// FindByTypeID implements WidgetRegistry.
func (r *StaticWidgetRegistry) FindByTypeID(typeID string) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[typeID]
	return renderer, ok
}

// Renderers returns every registered renderer sorted by type id.
func (r *StaticWidgetRegistry) Renderers() []Renderer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Renderer, 0, len(r.renderers))
	for _, renderer := range r.renderers {
		out = append(out, renderer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// LoadManifestDocument registers every renderer declared in the manifest.
func (r *StaticWidgetRegistry) LoadManifestDocument(doc *ManifestDocument) error {
	if doc == nil {
		return fmt.Errorf("binding: manifest document is nil")
	}
	for _, renderer := range doc.Renderers {
		if err := r.RegisterRenderer(renderer); err != nil {
			return fmt.Errorf("binding: register renderer %s from %s: %w", renderer.TypeID, doc.Source, err)
		}
	}
	return nil
}
