package binding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultPipelineBuffer = 16

// MergeRequest describes the streams a widget needs.
type MergeRequest struct {
	WidgetID string
	Shapes   []DataShape
	Bindings map[string]string
	Interval IntervalSource
}

// Update is one emission of a merged stream. Err is set when a provider
// failed; Value then still carries everything accumulated so far.
type Update struct {
	Value WidgetData
	Shape DataShape
	Err   error
}

// Pipeline merges resolved provider streams into accumulated widget values.
type Pipeline struct {
	resolver     *Resolver
	interceptors []Interceptor
	clock        Clock
	logger       zerolog.Logger
	telemetry    Telemetry
	buffer       int
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithInterceptors appends interceptor stages applied in order.
func WithInterceptors(interceptors ...Interceptor) PipelineOption {
	return func(p *Pipeline) {
		p.interceptors = append(p.interceptors, interceptors...)
	}
}

// WithPipelineClock sets the clock used by throttles.
func WithPipelineClock(clock Clock) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPipelineTelemetry sets the telemetry sink.
func WithPipelineTelemetry(t Telemetry) PipelineOption {
	return func(p *Pipeline) { p.telemetry = normalizeTelemetry(t) }
}

// WithPipelineBuffer sets the output channel capacity.
func WithPipelineBuffer(size int) PipelineOption {
	return func(p *Pipeline) {
		if size > 0 {
			p.buffer = size
		}
	}
}

// NewPipeline builds a merge pipeline on top of a resolver.
func NewPipeline(resolver *Resolver, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:  resolver,
		clock:     SystemClock(),
		logger:    zerolog.Nop(),
		telemetry: noopTelemetry{},
		buffer:    defaultPipelineBuffer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type shapeEvent struct {
	shape    DataShape
	snapshot Snapshot
	err      error
}

// Stream subscribes to one provider per requested shape and returns the
// merged sequence of accumulated values. The empty seed is already buffered
// when Stream returns. The channel closes when ctx is done or every upstream
// has ended; with no shapes it carries only the seed.
func (p *Pipeline) Stream(ctx context.Context, req MergeRequest) <-chan Update {
	out := make(chan Update, p.buffer)
	out <- Update{Value: EmptyWidgetData()}
	shapes := uniqueShapes(req.Shapes)
	if len(shapes) == 0 {
		close(out)
		return out
	}

	events := make(chan shapeEvent)
	var wg sync.WaitGroup
	for _, shape := range shapes {
		provider := p.resolver.Resolve(shape, req.Bindings[string(shape)])
		if provider == nil {
			p.logger.Debug().
				Str("widget_id", req.WidgetID).
				Str("shape", string(shape)).
				Msg("no provider resolved for shape")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.forward(ctx, req, shape, provider, events)
		}()
	}
	go func() {
		wg.Wait()
		close(events)
	}()
	go p.fold(ctx, events, out)
	return out
}

func (p *Pipeline) forward(ctx context.Context, req MergeRequest, shape DataShape, provider Provider, events chan<- shapeEvent) {
	emit := func(ev shapeEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		emit(shapeEvent{shape: shape, err: &ProviderError{
			Shape:    shape,
			SourceID: provider.SourceID(),
			Err:      err,
		}})
	}
	defer func() {
		if r := recover(); r != nil {
			fail(&PanicError{Value: r})
		}
	}()

	started := p.clock.Now()
	snapshots, errs := provider.Stream(ctx)
	hints, hinted := provider.(TimeoutHints)
	if hinted && hints.SubscriberTimeout() > 0 {
		if took := p.clock.Now().Sub(started); took > hints.SubscriberTimeout() {
			p.logger.Debug().
				Str("widget_id", req.WidgetID).
				Str("provider", provider.SourceID()).
				Dur("took", took).
				Dur("timeout", hints.SubscriberTimeout()).
				Msg("provider subscription exceeded its subscriber timeout")
		}
	}
	var stream <-chan Snapshot = snapshots
	for _, ic := range p.interceptors {
		stream = ic.Intercept(ctx, provider, stream)
	}
	throttle := NewThrottle(p.clock, req.Interval)

	var watchdog <-chan time.Time
	if hinted && hints.FirstEmitTimeout() > 0 {
		watchdog = p.clock.After(hints.FirstEmitTimeout())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-watchdog:
			watchdog = nil
			p.logger.Warn().
				Str("widget_id", req.WidgetID).
				Str("provider", provider.SourceID()).
				Msg("provider has not emitted within its first emission timeout")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				fail(err)
				return
			}
		case s, ok := <-stream:
			if !ok {
				p.drainError(errs, fail)
				return
			}
			watchdog = nil
			if s == nil {
				continue
			}
			if s.Shape() != shape {
				fail(fmt.Errorf("snapshot shape %q does not match %q", s.Shape(), shape))
				return
			}
			if !throttle.Allow() {
				p.telemetry.Record(ctx, "binding.widget.throttled", map[string]any{
					"widget_id": req.WidgetID,
					"shape":     string(shape),
				})
				continue
			}
			if !emit(shapeEvent{shape: shape, snapshot: s}) {
				return
			}
		}
	}
}

// drainError picks up a failure sent just before the snapshot channel closed.
func (p *Pipeline) drainError(errs <-chan error, fail func(error)) {
	if errs == nil {
		return
	}
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			fail(err)
		}
	default:
	}
}

func (p *Pipeline) fold(ctx context.Context, events <-chan shapeEvent, out chan<- Update) {
	defer close(out)
	acc := EmptyWidgetData()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			update := Update{Shape: ev.shape, Err: ev.err}
			if ev.err == nil {
				acc = acc.With(ev.snapshot)
			}
			update.Value = acc
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

func uniqueShapes(shapes []DataShape) []DataShape {
	seen := make(map[DataShape]struct{}, len(shapes))
	out := make([]DataShape, 0, len(shapes))
	for _, s := range shapes {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
