package binding

import "sync"

// Container is a live, observable value. Subscribers always see the latest
// value; intermediate values are coalesced for slow readers.
type Container[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]chan T
	next   int
	closed bool
}

// NewContainer creates a container holding initial.
func NewContainer[T any](initial T) *Container[T] {
	return &Container[T]{value: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (c *Container[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers.
func (c *Container[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.publish(v)
}

// Update applies fn to the current value atomically and publishes the result
// when changed reports true.
func (c *Container[T]) Update(fn func(T) (T, bool)) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := fn(c.value)
	if changed {
		c.value = next
		c.publish(next)
	}
	return c.value
}

// Subscribe returns a channel primed with the current value and a cancel func.
// The channel is closed by cancel or when the container is closed.
func (c *Container[T]) Subscribe() (<-chan T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan T, 1)
	if c.closed {
		ch <- c.value
		close(ch)
		return ch, func() {}
	}
	id := c.next
	c.next++
	ch <- c.value
	c.subs[id] = ch
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close releases every subscriber. The value stays readable.
func (c *Container[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// publish replaces any unread value so readers get the newest one.
func (c *Container[T]) publish(v T) {
	for _, ch := range c.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
