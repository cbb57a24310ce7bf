package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"relaychat/internal/domain"
)

type TypingRepo struct {
	db *sql.DB
}

func NewTypingRepo(db *sql.DB) *TypingRepo {
	return &TypingRepo{db: db}
}

var _ domain.TypingRepository = (*TypingRepo)(nil)

func (r *TypingRepo) Upsert(ctx context.Context, conversationID, userID, expiresAtMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO typing (conversation_id, user_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET expires_at = excluded.expires_at
	`, conversationID, userID, expiresAtMillis)
	if err != nil {
		return fmt.Errorf("upsert typing: %w", err)
	}
	return nil
}

func (r *TypingRepo) ListActive(ctx context.Context, conversationID, nowMillis int64) ([]*domain.TypingRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, expires_at
		FROM typing
		WHERE conversation_id = ? AND expires_at > ?
	`, conversationID, nowMillis)
	if err != nil {
		return nil, fmt.Errorf("list typing: %w", err)
	}
	defer rows.Close()

	var res []*domain.TypingRecord
	for rows.Next() {
		t := &domain.TypingRecord{}
		if err := rows.Scan(&t.ConversationID, &t.UserID, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan typing: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// DeleteExpired is the opportunistic reap; correctness never depends on it.
func (r *TypingRepo) DeleteExpired(ctx context.Context, conversationID, nowMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM typing WHERE conversation_id = ? AND expires_at <= ?
	`, conversationID, nowMillis)
	if err != nil {
		return fmt.Errorf("delete expired typing: %w", err)
	}
	return nil
}
