package binding

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// IntervalSource yields the minimum spacing between emissions. It is read on
// every event so the value may change while streams are live.
type IntervalSource interface {
	MinInterval() time.Duration
}

// FixedInterval is a constant IntervalSource.
type FixedInterval time.Duration

// MinInterval implements IntervalSource.
func (f FixedInterval) MinInterval() time.Duration { return time.Duration(f) }

// Throttle drops events that arrive sooner than the minimum interval after the
// last accepted one. Dropped events are not buffered.
type Throttle struct {
	clock    Clock
	interval IntervalSource
	last     time.Time
	primed   bool
}

// NewThrottle builds a throttle reading time from clock.
func NewThrottle(clock Clock, interval IntervalSource) *Throttle {
	if clock == nil {
		clock = SystemClock()
	}
	return &Throttle{clock: clock, interval: interval}
}

// Allow reports whether an event arriving now passes. The last emission time
// only moves on accepted events.
func (t *Throttle) Allow() bool {
	now := t.clock.Now()
	var min time.Duration
	if t.interval != nil {
		min = t.interval.MinInterval()
	}
	if t.primed && min > 0 && now.Sub(t.last) < min {
		return false
	}
	t.last = now
	t.primed = true
	return true
}

// RenderMode is the thermal/performance mode reported by the host.
type RenderMode int

const (
	RenderModeNormal RenderMode = iota
	RenderModeDegraded
	RenderModeCritical
)

func (m RenderMode) String() string {
	switch m {
	case RenderModeNormal:
		return "normal"
	case RenderModeDegraded:
		return "degraded"
	case RenderModeCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode by name.
func (m RenderMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseRenderMode converts a mode name into a RenderMode.
func ParseRenderMode(value string) (RenderMode, error) {
	for _, m := range []RenderMode{RenderModeNormal, RenderModeDegraded, RenderModeCritical} {
		if strings.EqualFold(strings.TrimSpace(value), m.String()) {
			return m, nil
		}
	}
	return RenderModeNormal, fmt.Errorf("binding: unknown render mode %q", value)
}

// RenderConfig is the value published by the performance signal.
type RenderConfig struct {
	Mode      RenderMode `json:"mode"`
	TargetFPS int        `json:"target_fps,omitempty"`
}

// MinInterval derives the emission spacing from the config. TargetFPS wins
// over base when set; degraded mode halves the rate, critical quarters it.
func (c RenderConfig) MinInterval(base time.Duration) time.Duration {
	interval := base
	if c.TargetFPS > 0 {
		interval = time.Second / time.Duration(c.TargetFPS)
	}
	switch c.Mode {
	case RenderModeDegraded:
		interval *= 2
	case RenderModeCritical:
		interval *= 4
	}
	return interval
}

// performanceTracker keeps the latest render config and exposes it as an
// IntervalSource shared by every widget pipeline.
type performanceTracker struct {
	base    time.Duration
	current atomic.Pointer[RenderConfig]
}

func newPerformanceTracker(base time.Duration) *performanceTracker {
	t := &performanceTracker{base: base}
	t.current.Store(&RenderConfig{})
	return t
}

func (t *performanceTracker) Store(cfg RenderConfig) {
	t.current.Store(&cfg)
}

func (t *performanceTracker) Current() RenderConfig {
	return *t.current.Load()
}

func (t *performanceTracker) MinInterval() time.Duration {
	return t.current.Load().MinInterval(t.base)
}
