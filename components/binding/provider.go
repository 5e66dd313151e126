package binding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Priority ranks providers; lower values are preferred.
type Priority int

const (
	PriorityHardware Priority = iota
	PriorityDeviceSensor
	PriorityNetwork
	PrioritySimulated
)

var priorityNames = map[Priority]string{
	PriorityHardware:     "hardware",
	PriorityDeviceSensor: "device_sensor",
	PriorityNetwork:      "network",
	PrioritySimulated:    "simulated",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a priority name as used in manifests.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority converts a priority name into a Priority.
func ParsePriority(value string) (Priority, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for p, name := range priorityNames {
		if name == normalized {
			return p, nil
		}
	}
	return 0, fmt.Errorf("binding: unknown provider priority %q", value)
}

// Provider is a data source feeding one data shape.
//
// Stream starts a fresh subscription every time it is called. Snapshots are
// delivered until ctx is cancelled or the snapshot channel is closed. A failure
// is sent on the error channel before the snapshot channel is closed.
type Provider interface {
	SourceID() string
	DataType() DataShape
	Priority() Priority
	// RequiredEntitlements is satisfied when any of the ids is held. Empty means free.
	RequiredEntitlements() []string
	Available() bool
	Stream(ctx context.Context) (<-chan Snapshot, <-chan error)
}

// TimeoutHints are advisory durations a provider may declare. The pipeline
// only logs when they are exceeded.
type TimeoutHints interface {
	SubscriberTimeout() time.Duration
	FirstEmitTimeout() time.Duration
}

// StreamFunc produces a provider stream.
type StreamFunc func(ctx context.Context) (<-chan Snapshot, <-chan error)

// ProviderSpec carries the static description of a FuncProvider.
type ProviderSpec struct {
	SourceID          string
	DataType          DataShape
	Priority          Priority
	Entitlements      []string
	Unavailable       bool
	SubscriberTimeout time.Duration
	FirstEmitTimeout  time.Duration
}

// FuncProvider adapts a StreamFunc into a Provider.
type FuncProvider struct {
	spec   ProviderSpec
	stream StreamFunc
}

// NewFuncProvider builds a Provider from a spec and a stream function.
func NewFuncProvider(spec ProviderSpec, stream StreamFunc) *FuncProvider {
	return &FuncProvider{spec: spec, stream: stream}
}

func (p *FuncProvider) SourceID() string               { return p.spec.SourceID }
func (p *FuncProvider) DataType() DataShape            { return p.spec.DataType }
func (p *FuncProvider) Priority() Priority             { return p.spec.Priority }
func (p *FuncProvider) RequiredEntitlements() []string { return p.spec.Entitlements }
func (p *FuncProvider) Available() bool                { return !p.spec.Unavailable }
func (p *FuncProvider) SubscriberTimeout() time.Duration {
	return p.spec.SubscriberTimeout
}
func (p *FuncProvider) FirstEmitTimeout() time.Duration {
	return p.spec.FirstEmitTimeout
}

// Stream implements Provider.
func (p *FuncProvider) Stream(ctx context.Context) (<-chan Snapshot, <-chan error) {
	if p.stream == nil {
		out := make(chan Snapshot)
		close(out)
		return out, nil
	}
	return p.stream(ctx)
}
