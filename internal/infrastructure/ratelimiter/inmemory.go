package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type inMemoryEntry struct {
	value     int64
	expiresAt time.Time
}

type InMemory struct {
	entries   map[string]inMemoryEntry
	mu        sync.RWMutex
	stopClean chan struct{}
	cleanOnce sync.Once
}

// NewInMemory returns a process-local GetterSetter. Expired entries are
// dropped once a minute until Close.
func NewInMemory() *InMemory {
	im := &InMemory{
		entries:   make(map[string]inMemoryEntry),
		stopClean: make(chan struct{}),
	}

	go im.cleanupExpired()

	return im
}

func (i *InMemory) Get(_ context.Context, key string) (int64, error) {
	i.mu.RLock()
	entry, ok := i.entries[key]
	i.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return 0, ErrCacheMiss
	}
	return entry.value, nil
}

func (i *InMemory) SetWithExpiration(_ context.Context, key string, value int64, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	i.mu.Lock()
	i.entries[key] = inMemoryEntry{value: value, expiresAt: expiresAt}
	i.mu.Unlock()

	return nil
}

func (i *InMemory) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.removeExpired(time.Now())
		case <-i.stopClean:
			return
		}
	}
}

func (i *InMemory) removeExpired(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for key, entry := range i.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(i.entries, key)
		}
	}
}

func (i *InMemory) Close() error {
	i.cleanOnce.Do(func() {
		close(i.stopClean)
	})
	return nil
}
