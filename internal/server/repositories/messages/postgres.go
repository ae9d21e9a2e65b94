// Package messages provides a PostgreSQL-backed repository for durable
// message records. Envelopes are stored as jsonb and never interpreted.
package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sealdm/sealdm/internal/common"
	"github.com/sealdm/sealdm/internal/dbx"
	"github.com/sealdm/sealdm/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new message record and returns it with the store-assigned id.
func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	forSender, err := json.Marshal(msg.ContentForSender)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	forReceiver, err := json.Marshal(msg.ContentForReceiver)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	query := `
		INSERT INTO messages (sender_id, receiver_id, content_for_sender, content_for_receiver, sent_at, read)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query,
		msg.SenderID, msg.ReceiverID, forSender, forReceiver, msg.Timestamp).Scan(&msg.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

// FindBetween returns every message exchanged between a and b, in both
// directions, newest first.
func (r *PostgresRepository) FindBetween(ctx context.Context, a, b string) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content_for_sender, content_for_receiver, sent_at, read
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY sent_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msgs, nil
}

// MarkRead flags all unread messages from senderID to receiverID as read and
// returns the number of affected rows.
func (r *PostgresRepository) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	query := `
		UPDATE messages SET read = true
		WHERE sender_id = $1 AND receiver_id = $2 AND read = false
	`

	res, err := r.db.ExecContext(ctx, query, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// CountUnread returns the number of unread messages from senderID to receiverID.
func (r *PostgresRepository) CountUnread(ctx context.Context, senderID, receiverID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE sender_id = $1 AND receiver_id = $2 AND read = false
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, senderID, receiverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// FindLast returns the most recent message between a and b, or
// common.ErrorNotFound when the pair has no messages.
func (r *PostgresRepository) FindLast(ctx context.Context, a, b string) (*models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content_for_sender, content_for_receiver, sent_at, read
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY sent_at DESC
		LIMIT 1
	`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, a, b).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return msg, nil
}

// FindPartnerIDs returns the distinct identities viewerID has exchanged
// messages with, in either direction.
func (r *PostgresRepository) FindPartnerIDs(ctx context.Context, viewerID string) ([]string, error) {
	query := `
		SELECT DISTINCT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ids, nil
}

func scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var forSender, forReceiver []byte

	if err := scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &forSender, &forReceiver, &msg.Timestamp, &msg.Read); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(forSender, &msg.ContentForSender); err != nil {
		return nil, fmt.Errorf("decoding stored envelope: %w", err)
	}
	if err := json.Unmarshal(forReceiver, &msg.ContentForReceiver); err != nil {
		return nil, fmt.Errorf("decoding stored envelope: %w", err)
	}

	return msg, nil
}
