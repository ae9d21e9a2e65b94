// Package dbx provides the tiny DB abstraction shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx.
// Message records are independent of each other, so the core never needs a
// multi-statement transaction, but repositories stay bindable to one.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
