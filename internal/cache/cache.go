package cache

import (
	"time"

	"cashcast/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

type statsReporter interface {
	Stats() Stats
}

type namedCache struct {
	name string
	c    Cleaner
}

// Manager periodically drops expired entries from its registered caches
type Manager struct {
	caches      []namedCache
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		caches:      make([]namedCache, 0),
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(name string, cache Cleaner) {
	m.caches = append(m.caches, namedCache{name: name, c: cache})
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanAll(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
			m.logStats()
		case <-m.stopCleanup:
			return
		}
	}
}

// CleanAll runs one cleanup pass and returns how many entries were dropped
func (m *Manager) CleanAll() int {
	total := 0
	for _, nc := range m.caches {
		total += nc.c.CleanExpired()
	}
	return total
}

func (m *Manager) logStats() {
	for _, nc := range m.caches {
		r, ok := nc.c.(statsReporter)
		if !ok {
			continue
		}
		s := r.Stats()
		m.logger.Debug("Cache stats",
			"cache", nc.name,
			"size", s.Size,
			"hits", s.Hits,
			"misses", s.Misses,
			"evictions", s.Evictions,
			"expired", s.Expired,
		)
	}
}

// Stop gracefully stops the cleanup routine. It must only be called after
// StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
