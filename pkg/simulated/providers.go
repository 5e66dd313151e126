// Package simulated provides in-memory providers and collaborators for demos,
// the bindctl CLI and tests.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"time"

	binding "github.com/goliatone/go-widgetbind/components/binding"
)

const defaultTickInterval = 100 * time.Millisecond

// ErrScriptedFailure is emitted by providers configured to fail.
var ErrScriptedFailure = errors.New("simulated: provider failure")

// TickerConfig configures a Ticker provider.
type TickerConfig struct {
	Spec     binding.ProviderSpec
	Interval time.Duration
	// Values are emitted in a loop. An empty list emits the tick counter.
	Values []any
	// FailAfter makes each stream fail after that many emissions. Zero never fails.
	FailAfter int
	Clock     binding.Clock
}

// Ticker emits a reading every interval.
type Ticker struct {
	*binding.FuncProvider
	cfg TickerConfig
}

// NewTicker builds a ticking provider.
func NewTicker(cfg TickerConfig) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = binding.SystemClock()
	}
	t := &Ticker{cfg: cfg}
	t.FuncProvider = binding.NewFuncProvider(cfg.Spec, t.stream)
	return t
}

func (t *Ticker) stream(ctx context.Context) (<-chan binding.Snapshot, <-chan error) {
	out := make(chan binding.Snapshot)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		for n := 0; ; n++ {
			if t.cfg.FailAfter > 0 && n >= t.cfg.FailAfter {
				errs <- fmt.Errorf("%w: %s after %d values", ErrScriptedFailure, t.cfg.Spec.SourceID, n)
				return
			}
			reading := binding.Reading{
				Type:  t.cfg.Spec.DataType,
				At:    t.cfg.Clock.Now(),
				Value: t.value(n),
			}
			select {
			case <-ctx.Done():
				return
			case out <- reading:
			}
			select {
			case <-ctx.Done():
				return
			case <-t.cfg.Clock.After(t.cfg.Interval):
			}
		}
	}()
	return out, errs
}

func (t *Ticker) value(n int) any {
	if len(t.cfg.Values) == 0 {
		return n
	}
	return t.cfg.Values[n%len(t.cfg.Values)]
}

// Step is one scripted emission. A step with Err fails the stream.
type Step struct {
	Delay time.Duration
	Value any
	Err   error
}

// Scripted replays the same steps on every subscription, then keeps the
// stream open until cancelled unless CloseAtEnd is set.
type Scripted struct {
	*binding.FuncProvider
	spec       binding.ProviderSpec
	steps      []Step
	closeAtEnd bool
	clock      binding.Clock
}

// ScriptedOption customizes a Scripted provider.
type ScriptedOption func(*Scripted)

// WithCloseAtEnd closes the stream once every step was replayed.
func WithCloseAtEnd() ScriptedOption {
	return func(s *Scripted) { s.closeAtEnd = true }
}

// WithScriptClock injects the clock used for step delays and timestamps.
func WithScriptClock(clock binding.Clock) ScriptedOption {
	return func(s *Scripted) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewScripted builds a scripted provider.
func NewScripted(spec binding.ProviderSpec, steps []Step, opts ...ScriptedOption) *Scripted {
	s := &Scripted{spec: spec, steps: steps, clock: binding.SystemClock()}
	for _, opt := range opts {
		opt(s)
	}
	s.FuncProvider = binding.NewFuncProvider(spec, s.stream)
	return s
}

func (s *Scripted) stream(ctx context.Context) (<-chan binding.Snapshot, <-chan error) {
	out := make(chan binding.Snapshot)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		for _, step := range s.steps {
			if step.Delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-s.clock.After(step.Delay):
				}
			}
			if step.Err != nil {
				errs <- step.Err
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- binding.Reading{Type: s.spec.DataType, At: s.clock.Now(), Value: step.Value}:
			}
		}
		if s.closeAtEnd {
			return
		}
		<-ctx.Done()
	}()
	return out, errs
}

// FromManifest builds ticking providers for the providers declared in doc.
// Entries with a url are remote and skipped.
func FromManifest(doc *binding.ManifestDocument, clock binding.Clock) ([]binding.Provider, error) {
	if doc == nil {
		return nil, errors.New("simulated: manifest document is nil")
	}
	providers := make([]binding.Provider, 0, len(doc.Providers))
	for _, entry := range doc.Providers {
		if entry.URL != "" {
			continue
		}
		spec, err := entry.Spec()
		if err != nil {
			return nil, fmt.Errorf("simulated: provider %s: %w", entry.SourceID, err)
		}
		providers = append(providers, NewTicker(TickerConfig{
			Spec:      spec,
			Interval:  entry.Interval,
			Values:    entry.Values,
			FailAfter: entry.FailAfter,
			Clock:     clock,
		}))
	}
	return providers, nil
}
