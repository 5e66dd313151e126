package binding

import "sort"

// ProviderRegistry answers lookups over an immutable provider set.
// Duplicate source ids are kept as given.
type ProviderRegistry struct {
	providers []Provider
}

// NewProviderRegistry copies the provided set into a registry.
func NewProviderRegistry(providers ...Provider) *ProviderRegistry {
	list := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	return &ProviderRegistry{providers: list}
}

// All returns every registered provider in registration order.
func (r *ProviderRegistry) All() []Provider {
	if r == nil {
		return nil
	}
	return append([]Provider(nil), r.providers...)
}

// FindByDataType returns the providers emitting shape, ordered by priority.
// Ties keep registration order.
func (r *ProviderRegistry) FindByDataType(shape DataShape) []Provider {
	if r == nil {
		return nil
	}
	var matches []Provider
	for _, p := range r.providers {
		if p.DataType() == shape {
			matches = append(matches, p)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority() < matches[j].Priority()
	})
	return matches
}

// Filtered returns providers without an entitlement requirement or with at
// least one requirement satisfied by has.
func (r *ProviderRegistry) Filtered(has func(entitlement string) bool) []Provider {
	if r == nil {
		return nil
	}
	var out []Provider
	for _, p := range r.providers {
		if entitled(p.RequiredEntitlements(), has) {
			out = append(out, p)
		}
	}
	return out
}

// ProviderByID returns the first provider registered with sourceID.
func (r *ProviderRegistry) ProviderByID(sourceID string) (Provider, bool) {
	if r == nil || sourceID == "" {
		return nil, false
	}
	for _, p := range r.providers {
		if p.SourceID() == sourceID {
			return p, true
		}
	}
	return nil, false
}

// Shapes lists the distinct data shapes served by the registry, sorted.
func (r *ProviderRegistry) Shapes() []DataShape {
	if r == nil {
		return nil
	}
	seen := map[DataShape]struct{}{}
	var shapes []DataShape
	for _, p := range r.providers {
		if _, ok := seen[p.DataType()]; ok {
			continue
		}
		seen[p.DataType()] = struct{}{}
		shapes = append(shapes, p.DataType())
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i] < shapes[j] })
	return shapes
}

func entitled(required []string, has func(string) bool) bool {
	if len(required) == 0 {
		return true
	}
	if has == nil {
		return false
	}
	for _, ent := range required {
		if has(ent) {
			return true
		}
	}
	return false
}
