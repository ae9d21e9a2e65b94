package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sealdm/sealdm/internal/common"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is an in-process Store used when no Redis address is
// configured, and by tests. Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.entries, key)
		return "", common.ErrorNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.entries[key] = memoryEntry{value: value, expires: expires}
	return nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}
