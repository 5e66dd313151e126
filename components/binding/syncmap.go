package binding

import (
	"hash/maphash"
	"sort"
	"sync"
)

const mapShards = 16

// shardedMap is a lock-striped map keyed by widget id. Writers for different
// widgets rarely share a shard, so there is no global lock.
type shardedMap[V any] struct {
	seed   maphash.Seed
	shards [mapShards]mapShard[V]
}

type mapShard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newShardedMap[V any]() *shardedMap[V] {
	sm := &shardedMap[V]{seed: maphash.MakeSeed()}
	for i := range sm.shards {
		sm.shards[i].m = make(map[string]V)
	}
	return sm
}

func (sm *shardedMap[V]) shard(key string) *mapShard[V] {
	return &sm.shards[maphash.String(sm.seed, key)%mapShards]
}

func (sm *shardedMap[V]) Load(key string) (V, bool) {
	s := sm.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (sm *shardedMap[V]) Store(key string, value V) {
	s := sm.shard(key)
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

// LoadOrCreate returns the stored value or stores and returns create().
func (sm *shardedMap[V]) LoadOrCreate(key string, create func() V) V {
	s := sm.shard(key)
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	if ok {
		return v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v
	}
	v = create()
	s.m[key] = v
	return v
}

// Update applies fn to the current value (zero when absent) atomically.
func (sm *shardedMap[V]) Update(key string, fn func(V) V) V {
	s := sm.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v := fn(s.m[key])
	s.m[key] = v
	return v
}

// UpdateIfPresent applies fn only when key exists. Absent keys stay absent.
func (sm *shardedMap[V]) UpdateIfPresent(key string, fn func(V) V) (V, bool) {
	s := sm.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return v, false
	}
	v = fn(v)
	s.m[key] = v
	return v, true
}

// Swap stores value and returns the value it displaced, if any.
func (sm *shardedMap[V]) Swap(key string, value V) (V, bool) {
	s := sm.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.m[key]
	s.m[key] = value
	return prev, ok
}

// CompareAndDelete removes key when match reports true for its value.
func (sm *shardedMap[V]) CompareAndDelete(key string, match func(V) bool) bool {
	s := sm.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok || !match(v) {
		return false
	}
	delete(s.m, key)
	return true
}

func (sm *shardedMap[V]) LoadAndDelete(key string) (V, bool) {
	s := sm.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if ok {
		delete(s.m, key)
	}
	return v, ok
}

func (sm *shardedMap[V]) Delete(key string) {
	sm.LoadAndDelete(key)
}

// Snapshot copies the map into a plain map.
func (sm *shardedMap[V]) Snapshot() map[string]V {
	out := make(map[string]V)
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

// Keys returns the sorted keys.
func (sm *shardedMap[V]) Keys() []string {
	snap := sm.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (sm *shardedMap[V]) Len() int {
	n := 0
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Drain removes and returns every entry.
func (sm *shardedMap[V]) Drain() map[string]V {
	out := make(map[string]V)
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			out[k] = v
		}
		s.m = make(map[string]V)
		s.mu.Unlock()
	}
	return out
}
