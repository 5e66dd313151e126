package binding

import "context"

// Interceptor transforms a provider stream. Implementations may filter or map
// snapshots but must keep their shape. The returned channel must be closed
// once in is closed or ctx is done.
type Interceptor interface {
	Intercept(ctx context.Context, provider Provider, in <-chan Snapshot) <-chan Snapshot
}

// InterceptorFunc adapts a function into an Interceptor.
type InterceptorFunc func(ctx context.Context, provider Provider, in <-chan Snapshot) <-chan Snapshot

// Intercept implements Interceptor.
func (f InterceptorFunc) Intercept(ctx context.Context, provider Provider, in <-chan Snapshot) <-chan Snapshot {
	return f(ctx, provider, in)
}

// MapInterceptor rewrites snapshots. A result with a different shape, or nil,
// is replaced by the original snapshot.
func MapInterceptor(fn func(Provider, Snapshot) Snapshot) Interceptor {
	return InterceptorFunc(func(ctx context.Context, provider Provider, in <-chan Snapshot) <-chan Snapshot {
		return relay(ctx, in, func(s Snapshot) (Snapshot, bool) {
			mapped := fn(provider, s)
			if mapped == nil || mapped.Shape() != s.Shape() {
				return s, true
			}
			return mapped, true
		})
	})
}

// FilterInterceptor keeps the snapshots for which keep returns true.
func FilterInterceptor(keep func(Provider, Snapshot) bool) Interceptor {
	return InterceptorFunc(func(ctx context.Context, provider Provider, in <-chan Snapshot) <-chan Snapshot {
		return relay(ctx, in, func(s Snapshot) (Snapshot, bool) {
			return s, keep(provider, s)
		})
	})
}

func relay(ctx context.Context, in <-chan Snapshot, step func(Snapshot) (Snapshot, bool)) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-in:
				if !ok {
					return
				}
				next, keep := step(s)
				if !keep {
					continue
				}
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
