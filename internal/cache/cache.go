// Package cache holds the in-process caches that sit in front of SQLite
// reads and data.gov.in fetches.
package cache

import (
	"sync"
	"time"

	"mgnrega/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner is implemented by caches whose expired entries can be swept.
type Cleaner interface {
	CleanExpired() int
}

// Purger is implemented by caches that can be emptied after a data refresh.
type Purger interface {
	Purge()
}

// Manager sweeps registered caches periodically and purges them all when the
// underlying data changes.
type Manager struct {
	mu          sync.Mutex
	cleaners    []Cleaner
	purgers     []Purger
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds c to the sweep and purge sets, as far as it supports them.
func (m *Manager) Register(c any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cl, ok := c.(Cleaner); ok {
		m.cleaners = append(m.cleaners, cl)
	}
	if p, ok := c.(Purger); ok {
		m.purgers = append(m.purgers, p)
	}
}

// PurgeAll empties every registered cache.
func (m *Manager) PurgeAll() {
	m.mu.Lock()
	purgers := append([]Purger(nil), m.purgers...)
	m.mu.Unlock()

	for _, p := range purgers {
		p.Purge()
	}
	m.logger.Debug("Caches purged", "count", len(purgers))
}

// CleanExpired sweeps every registered cache once and returns the number of
// entries removed.
func (m *Manager) CleanExpired() int {
	m.mu.Lock()
	cleaners := append([]Cleaner(nil), m.cleaners...)
	m.mu.Unlock()

	total := 0
	for _, c := range cleaners {
		total += c.CleanExpired()
	}
	return total
}

// StartCleanup begins periodic sweeping. It is a no-op when already started.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanExpired(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "removed", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine, if one was started.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()

	if started {
		close(m.stopCleanup)
		<-m.cleanupDone
	}
}
