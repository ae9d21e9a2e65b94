package messages

import (
	"context"

	"github.com/sealdm/sealdm/internal/server/models"
)

// Repository is the persistence contract for durable message records.
//
// FindBetween and FindLast treat the participant pair as unordered: both
// directions of the conversation are covered. MarkRead and CountUnread are
// directional: they address messages sent by senderID to receiverID.
type Repository interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
	FindBetween(ctx context.Context, a, b string) ([]*models.Message, error)
	MarkRead(ctx context.Context, senderID, receiverID string) (int64, error)
	CountUnread(ctx context.Context, senderID, receiverID string) (int64, error)
	FindLast(ctx context.Context, a, b string) (*models.Message, error)
	FindPartnerIDs(ctx context.Context, viewerID string) ([]string, error)
}
