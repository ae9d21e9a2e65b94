package users

import (
	"context"

	"github.com/sealdm/sealdm/internal/server/models"
)

// Repository is the profile lookup contract the chat list needs. User
// creation and credentials live in the external account service.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
