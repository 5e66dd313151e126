package binding

import (
	"context"
	"strings"
	"time"
)

// DataShape identifies the kind of data a provider emits (speed, battery, heading...).
type DataShape string

// Snapshot is a single timestamped value emitted by a provider.
type Snapshot interface {
	Shape() DataShape
	Timestamp() time.Time
}

// Reading is the general purpose Snapshot used by simulated providers and tests.
type Reading struct {
	Type  DataShape `json:"type" yaml:"type"`
	At    time.Time `json:"at" yaml:"at"`
	Value any       `json:"value,omitempty" yaml:"value,omitempty"`
}

// Shape implements Snapshot.
func (r Reading) Shape() DataShape { return r.Type }

// Timestamp implements Snapshot.
func (r Reading) Timestamp() time.Time { return r.At }

// WidgetInstance is the layout-owned description of a placed widget. The engine
// only reads it.
type WidgetInstance struct {
	ID                 string            `json:"id" yaml:"id"`
	TypeID             string            `json:"type_id" yaml:"type_id"`
	DataSourceBindings map[string]string `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	Settings           map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Binding returns the provider override recorded for a data shape slot.
func (w WidgetInstance) Binding(shape DataShape) string {
	if w.DataSourceBindings == nil {
		return ""
	}
	return w.DataSourceBindings[string(shape)]
}

// WithBinding returns a copy of the widget with the slot overridden.
func (w WidgetInstance) WithBinding(shape DataShape, providerID string) WidgetInstance {
	bindings := make(map[string]string, len(w.DataSourceBindings)+1)
	for k, v := range w.DataSourceBindings {
		bindings[k] = v
	}
	bindings[string(shape)] = providerID
	w.DataSourceBindings = bindings
	return w
}

// Renderer describes the data needs of a widget type.
type Renderer struct {
	TypeID                 string      `json:"type_id" yaml:"type_id"`
	Name                   string      `json:"name,omitempty" yaml:"name,omitempty"`
	CompatibleDataShapes   []DataShape `json:"shapes" yaml:"shapes"`
	RequiredAnyEntitlement []string    `json:"entitlements,omitempty" yaml:"entitlements,omitempty"`
	// Setup lists the widget settings that must be filled before data is bound.
	Setup                  []string    `json:"setup,omitempty" yaml:"setup,omitempty"`
}

// MissingSetup returns the setup keys the widget has not configured.
func (r Renderer) MissingSetup(widget WidgetInstance) []string {
	var missing []string
	for _, key := range r.Setup {
		if strings.TrimSpace(widget.Settings[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// WidgetRegistry resolves widget type ids to renderers.
type WidgetRegistry interface {
	FindByTypeID(typeID string) (Renderer, bool)
}

// EntitlementSource delivers the set of active entitlement ids every time it changes.
type EntitlementSource interface {
	Entitlements(ctx context.Context) <-chan []string
}

// CrashReporter receives per-widget crash notifications. Aggregation across
// widgets is the reporter's concern.
type CrashReporter interface {
	ReportCrash(widgetID, typeID string)
}

// PerformanceSignal delivers the current render configuration every time it changes.
type PerformanceSignal interface {
	RenderConfigs(ctx context.Context) <-chan RenderConfig
}

// OverrideStore supplies user selected provider overrides per widget instance.
type OverrideStore interface {
	Bindings(widgetID string) map[string]string
}

// RefreshHook notifies transports (SSE/WebSocket) about binding changes.
type RefreshHook interface {
	WidgetUpdated(ctx context.Context, event BindingEvent) error
}

// BindingEvent describes a binding lifecycle or status change.
type BindingEvent struct {
	ID       string        `json:"id"`
	WidgetID string        `json:"widget_id"`
	TypeID   string        `json:"type_id,omitempty"`
	Reason   string        `json:"reason"`
	State    BindingState  `json:"state"`
	Status   Status        `json:"status"`
	Attempt  int           `json:"attempt,omitempty"`
	Delay    time.Duration `json:"delay,omitempty"`
	At       time.Time     `json:"at"`
}

// BindingState is the supervisor's view of a widget binding.
type BindingState int

const (
	StateUnbound BindingState = iota
	StateBinding
	StateBound
	StateDegraded
	StateRetrying
	StateFailed
	StatePaused
)

var bindingStateNames = map[BindingState]string{
	StateUnbound:  "unbound",
	StateBinding:  "binding",
	StateBound:    "bound",
	StateDegraded: "degraded",
	StateRetrying: "retrying",
	StateFailed:   "failed",
	StatePaused:   "paused",
}

func (s BindingState) String() string {
	if name, ok := bindingStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s BindingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type noopRefreshHook struct{}

func (noopRefreshHook) WidgetUpdated(context.Context, BindingEvent) error { return nil }

type noopCrashReporter struct{}

func (noopCrashReporter) ReportCrash(string, string) {}
