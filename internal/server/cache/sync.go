package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sealdm/sealdm/internal/common"
	"github.com/sealdm/sealdm/internal/server/models"
)

// Sync keeps viewer cache entries coherent after a write. It performs plain
// read-modify-write cycles: concurrent writers to the same key can lose an
// interleaved update (last write wins). That is acceptable for an advisory
// cache and is not serialized per key.
type Sync struct {
	store Store
	ttl   time.Duration
	cap   int
}

func NewSync(store Store, ttl time.Duration, cap int) *Sync {
	return &Sync{store: store, ttl: ttl, cap: cap}
}

// PrependHistory inserts item at the front of the cached sequence under key,
// truncates to the configured cap, and writes back with a fresh TTL. A
// missing or undecodable entry is treated as empty, so a corrupted entry is
// transparently replaced rather than causing failure.
func (s *Sync) PrependHistory(ctx context.Context, key string, item models.HistoryItem) error {
	var items []models.HistoryItem

	payload, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		if jerr := json.Unmarshal([]byte(payload), &items); jerr != nil {
			items = nil
		}
	case errors.Is(err, common.ErrorNotFound):
		// start a fresh entry
	default:
		return err
	}

	items = append([]models.HistoryItem{item}, items...)
	if len(items) > s.cap {
		items = items[:s.cap]
	}

	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	return s.store.Set(ctx, key, string(b), s.ttl)
}

// InvalidateChatLists deletes the chat-list aggregate of every given viewer.
// The aggregate is recomputed on the next read rather than updated in place.
func (s *Sync) InvalidateChatLists(ctx context.Context, viewerIDs ...string) error {
	keys := make([]string, 0, len(viewerIDs))
	for _, id := range viewerIDs {
		keys = append(keys, ChatListKey(id))
	}
	return s.store.Del(ctx, keys...)
}
