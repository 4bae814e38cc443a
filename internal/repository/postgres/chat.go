package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edinai/classhub/internal/models"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

func (s *ChatStore) SaveMessage(ctx context.Context, tenantID int64, sender, recipient, body string, shareMetadata json.RawMessage) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (admin_id, sender, recipient, body, share_metadata, created_at)
		VALUES ($1, lower($2), lower($3), $4, $5, now())
		RETURNING id, admin_id, sender, recipient, body, COALESCE(share_metadata, 'null'::jsonb), created_at`

	// jsonb rejects the empty string; absent metadata is stored NULL.
	var metadata any
	if len(shareMetadata) > 0 {
		metadata = shareMetadata
	}

	var msg models.ChatMessage
	var meta []byte
	err := s.pool.QueryRow(ctx, query, tenantID, sender, recipient, body, metadata).Scan(
		&msg.ID,
		&msg.TenantID,
		&msg.Sender,
		&msg.Recipient,
		&msg.Body,
		&meta,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	if string(meta) != "null" {
		msg.ShareMetadata = meta
	}
	return &msg, nil
}

func (s *ChatStore) ListThread(ctx context.Context, tenantID int64, a, b string, before int64, limit int) ([]models.ChatMessage, error) {
	// Cursor pagination on the bigserial id: before=0 is the first
	// page, otherwise only messages older than the cursor.
	query := `
		SELECT id, admin_id, sender, recipient, body, COALESCE(share_metadata, 'null'::jsonb), created_at
		FROM chat_messages
		WHERE admin_id = $1
		  AND ((sender = lower($2) AND recipient = lower($3))
		    OR (sender = lower($3) AND recipient = lower($2)))
		  AND ($4::bigint = 0 OR id < $4)
		ORDER BY id DESC
		LIMIT $5`

	rows, err := s.pool.Query(ctx, query, tenantID, a, b, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat thread: %w", err)
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var msg models.ChatMessage
		var meta []byte
		if err := rows.Scan(
			&msg.ID,
			&msg.TenantID,
			&msg.Sender,
			&msg.Recipient,
			&msg.Body,
			&meta,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if string(meta) != "null" {
			msg.ShareMetadata = meta
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	return messages, nil
}
