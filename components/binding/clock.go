package binding

import "time"

// Clock supplies monotonic time readings and timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock. time.Now carries a monotonic reading,
// so interval math is immune to wall clock jumps.
func SystemClock() Clock { return systemClock{} }
