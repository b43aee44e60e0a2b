package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](4, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")
	now = now.Add(30 * time.Second)
	c.Set("b", "z")

	now = now.Add(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "z", v)

	now = now.Add(time.Hour)
	m := NewManager(nil)
	m.Register("strings", c)
	assert.Equal(t, 1, m.CleanAll())
	assert.Zero(t, c.Size())
}

func TestLRUCache_Stats(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	_, _ = c.Get("a")
	_, _ = c.Get("c")

	now = now.Add(2 * time.Minute)
	_, _ = c.Get("b")

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
	assert.Equal(t, uint64(1), s.Evictions)
	assert.Equal(t, uint64(1), s.Expired)
	assert.Equal(t, 1, s.Size)

	c.Purge()
	assert.Zero(t, c.Size())
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestLoader_SingleFlight(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](8, time.Minute))
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}

	v, err := l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
		t.Fatal("cached value must be served")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](8, time.Minute))
	boom := errors.New("boom")

	_, err := l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	l.Invalidate("k")
	v, err = l.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 8, nil })
	require.NoError(t, err)
	assert.Equal(t, 8, v)
}

func TestLoader_InvalidateDuringLoad(t *testing.T) {
	c := NewLRUCache[string](8, time.Minute)
	l := NewLoader[string](c)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, err := l.GetOrLoad(context.Background(), "daily:all:lags=14", func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	l.Invalidate("daily:all:lags=14")
	close(release)
	assert.Equal(t, "old", <-done)

	_, cached := c.Get("daily:all:lags=14")
	assert.False(t, cached, "a load that raced an invalidation must not be cached")

	v, err := l.GetOrLoad(context.Background(), "daily:all:lags=14", func(context.Context) (string, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	v, err = l.GetOrLoad(context.Background(), "daily:all:lags=14", func(context.Context) (string, error) {
		t.Fatal("fresh value must be cached")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}
