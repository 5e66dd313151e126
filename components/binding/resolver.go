package binding

import "github.com/rs/zerolog"

// Resolver picks the provider that feeds a data shape.
type Resolver struct {
	registry *ProviderRegistry
	logger   zerolog.Logger
}

// NewResolver builds a resolver over the registry.
func NewResolver(registry *ProviderRegistry, logger zerolog.Logger) *Resolver {
	if registry == nil {
		registry = NewProviderRegistry()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Registry exposes the underlying provider registry.
func (r *Resolver) Registry() *ProviderRegistry {
	return r.registry
}

// Resolve returns the provider for shape. A user override wins over priority
// when it names an available provider for the shape; otherwise the best
// available provider is used. Returns nil when nothing can serve the shape.
func (r *Resolver) Resolve(shape DataShape, overrideID string) Provider {
	candidates := r.registry.FindByDataType(shape)
	if overrideID != "" {
		if p := findByID(candidates, overrideID); p != nil {
			if p.Available() {
				return p
			}
			r.logger.Debug().
				Str("shape", string(shape)).
				Str("override", overrideID).
				Msg("override provider unavailable, falling back")
		} else {
			r.logger.Debug().
				Str("shape", string(shape)).
				Str("override", overrideID).
				Msg("override provider not registered, falling back")
		}
	}
	for _, p := range candidates {
		if p.Available() {
			return p
		}
	}
	return nil
}

func findByID(providers []Provider, id string) Provider {
	for _, p := range providers {
		if p.SourceID() == id {
			return p
		}
	}
	return nil
}
