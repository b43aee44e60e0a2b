package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader is a read-through cache: concurrent misses for the same key share one load.
type Loader[T any] struct {
	cache Cache[T]
	group singleflight.Group

	mu sync.Mutex
	// gen counts invalidations per key. A load only fills the cache if no
	// invalidation happened while it ran.
	gen map[string]uint64
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c, gen: make(map[string]uint64)}
}

// GetOrLoad returns the cached value for key or calls load once for all concurrent
// callers. Failed loads are not cached.
func (l *Loader[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		started := l.generation(key)
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		l.mu.Lock()
		if l.gen[key] == started {
			l.cache.Set(key, v)
		}
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops key so the next read loads it again. A load already running
// for key still answers its callers but does not fill the cache.
func (l *Loader[T]) Invalidate(key string) {
	l.mu.Lock()
	l.gen[key]++
	l.cache.Delete(key)
	l.mu.Unlock()
	l.group.Forget(key)
}

func (l *Loader[T]) generation(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen[key]
}
