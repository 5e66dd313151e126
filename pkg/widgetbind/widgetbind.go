package widgetbind

import (
	core "github.com/goliatone/go-widgetbind/components/binding"
)

// Supervisor exposes the underlying components/binding.Supervisor type.
type Supervisor = core.Supervisor

// Options re-export for convenience.
type Options = core.Options

// Config re-export for convenience.
type Config = core.Config

// WidgetInstance re-export for convenience.
type WidgetInstance = core.WidgetInstance

// Provider re-export for convenience.
type Provider = core.Provider

// NewSupervisor proxies to the internal constructor.
func NewSupervisor(opts Options) *Supervisor {
	return core.NewSupervisor(opts)
}

// NewProviderRegistry proxies to the internal constructor.
func NewProviderRegistry(providers ...Provider) *core.ProviderRegistry {
	return core.NewProviderRegistry(providers...)
}

// LoadConfig proxies to the internal loader.
func LoadConfig(path string) (Config, error) {
	return core.LoadConfig(path)
}
