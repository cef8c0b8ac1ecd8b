// Package cache holds the in-process caches: rendered ledger views on the
// HTTP side and recently seen event ids on the worker side.
package cache

import (
	"context"
	"time"

	"ledger/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches with expiring entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic expiry over registered caches.
type Manager struct {
	caches []Cleaner
	logger *log.Logger
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		done:   make(chan struct{}),
	}
}

// Register adds a cache; call before Run.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Run cleans every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := m.CleanAll(); cleaned > 0 {
				m.logger.Debug("Expired cache entries removed", "count", cleaned)
			}
		case <-ctx.Done():
			return
		}
	}
}

// CleanAll runs one expiry pass and returns the number of entries removed.
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Done is closed once Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
