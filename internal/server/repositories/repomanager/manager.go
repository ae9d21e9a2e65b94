package repomanager

import (
	"context"
	"database/sql"

	"github.com/sealdm/sealdm/internal/dbx"
	"github.com/sealdm/sealdm/internal/server/repositories/messages"
	"github.com/sealdm/sealdm/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes the schema migration hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Messages(db dbx.DBTX) messages.Repository
}
