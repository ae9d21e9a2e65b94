// Package history implements the cache-aside read path used by the
// chat-history and chat-list queries.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/sealdm/sealdm/internal/common"
	"github.com/sealdm/sealdm/internal/logging"
	"github.com/sealdm/sealdm/internal/server/cache"
	"github.com/sealdm/sealdm/internal/server/models"
	"github.com/sealdm/sealdm/internal/server/repositories/repomanager"
)

type Service struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   cache.Store
	logger  logging.Logger
	ttl     time.Duration
	timeout time.Duration

	// markedRead, when non-nil, receives a notification after every
	// background mark-read completes. Tests use it; production leaves it nil.
	markedRead chan<- struct{}
}

func NewService(db *sql.DB, repos repomanager.RepositoryManager, store cache.Store,
	logger logging.Logger, ttl, callTimeout time.Duration) *Service {
	return &Service{
		db:      db,
		repos:   repos,
		store:   store,
		logger:  logger.With("module", "history"),
		ttl:     ttl,
		timeout: callTimeout,
	}
}

// GetHistory returns the conversation between viewerID and otherID projected
// to the viewer, newest first. The cache is consulted first; the durable
// store is authoritative on a miss or a corrupt entry. Reading the history
// also marks the other party's messages as read, as a background side effect
// that never gates the response.
func (s *Service) GetHistory(ctx context.Context, viewerID, otherID string) ([]models.HistoryItem, error) {
	key := cache.HistoryKey(viewerID, otherID, viewerID)

	payload, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var items []models.HistoryItem
		if jerr := json.Unmarshal([]byte(payload), &items); jerr == nil {
			s.markReadAsync(otherID, viewerID)
			return items, nil
		}
		// corrupt entry: drop it and rebuild from the store
		if derr := s.store.Del(ctx, key); derr != nil {
			s.logger.Warn(ctx, "deleting corrupt cache entry failed", "error", derr, "key", key)
		}
	case errors.Is(err, common.ErrorNotFound):
		// plain miss
	default:
		s.logger.Warn(ctx, "cache read failed", "error", err, "key", key)
	}

	msgs, err := s.repos.Messages(s.db).FindBetween(ctx, viewerID, otherID)
	if err != nil {
		s.logger.Error(ctx, "history query failed", "error", err, "viewerID", viewerID)
		return nil, common.ErrorInternal
	}

	items := make([]models.HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, m.ViewFor(viewerID))
	}

	s.cacheResult(ctx, key, items)
	s.markReadAsync(otherID, viewerID)
	return items, nil
}

// GetChatList returns the viewer's conversations overview: one row per
// distinct partner with profile, unread count and last-message timestamp,
// most recent conversation first.
func (s *Service) GetChatList(ctx context.Context, viewerID string) ([]models.ChatPreview, error) {
	key := cache.ChatListKey(viewerID)

	payload, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var previews []models.ChatPreview
		if jerr := json.Unmarshal([]byte(payload), &previews); jerr == nil {
			return previews, nil
		}
		if derr := s.store.Del(ctx, key); derr != nil {
			s.logger.Warn(ctx, "deleting corrupt cache entry failed", "error", derr, "key", key)
		}
	case errors.Is(err, common.ErrorNotFound):
	default:
		s.logger.Warn(ctx, "cache read failed", "error", err, "key", key)
	}

	previews, err := s.buildChatList(ctx, viewerID)
	if err != nil {
		s.logger.Error(ctx, "chat list query failed", "error", err, "viewerID", viewerID)
		return nil, common.ErrorInternal
	}

	s.cacheResult(ctx, key, previews)
	return previews, nil
}

func (s *Service) buildChatList(ctx context.Context, viewerID string) ([]models.ChatPreview, error) {
	msgRepo := s.repos.Messages(s.db)

	partnerIDs, err := msgRepo.FindPartnerIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(partnerIDs) == 0 {
		return nil, nil
	}

	partners, err := s.repos.Users(s.db).GetByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}
	usernames := make(map[string]string, len(partners))
	for _, p := range partners {
		usernames[p.ID] = p.Username
	}

	previews := make([]models.ChatPreview, 0, len(partnerIDs))
	for _, partnerID := range partnerIDs {
		unread, err := msgRepo.CountUnread(ctx, partnerID, viewerID)
		if err != nil {
			return nil, err
		}

		last, err := msgRepo.FindLast(ctx, viewerID, partnerID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}

		previews = append(previews, models.ChatPreview{
			PartnerID:            partnerID,
			Username:             usernames[partnerID],
			UnreadCount:          unread,
			LastMessageTimestamp: last.Timestamp,
		})
	}

	sort.Slice(previews, func(i, j int) bool {
		return previews[i].LastMessageTimestamp.After(previews[j].LastMessageTimestamp)
	})
	return previews, nil
}

// cacheResult writes a non-empty projection back with a fresh TTL. Empty
// results are never cached: absence should not be pinned for the TTL, and
// recomputing it is cheap.
func (s *Service) cacheResult(ctx context.Context, key string, result any) {
	empty := false
	switch v := result.(type) {
	case []models.HistoryItem:
		empty = len(v) == 0
	case []models.ChatPreview:
		empty = len(v) == 0
	}
	if empty {
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn(ctx, "encoding cache entry failed", "error", err, "key", key)
		return
	}
	if err := s.store.Set(ctx, key, string(b), s.ttl); err != nil {
		s.logger.Warn(ctx, "cache write failed", "error", err, "key", key)
	}
}

// markReadAsync flags senderID→receiverID messages as read in the background.
// Errors are logged only; the read path's response never waits on it.
func (s *Service) markReadAsync(senderID, receiverID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.repos.Messages(s.db).MarkRead(ctx, senderID, receiverID); err != nil {
			s.logger.Warn(ctx, "mark read failed", "error", err,
				"senderID", senderID, "receiverID", receiverID)
		}
		if s.markedRead != nil {
			s.markedRead <- struct{}{}
		}
	}()
}
