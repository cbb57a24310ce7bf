package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"relaychat/internal/domain"
)

type ReactionRepo struct {
	db *sql.DB
}

func NewReactionRepo(db *sql.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

var _ domain.ReactionRepository = (*ReactionRepo)(nil)

func (r *ReactionRepo) Toggle(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT emoji FROM reactions WHERE message_id = $1 AND user_id = $2
	`, messageID, userID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("get reaction: %w", err)
	}

	reacted := false
	switch {
	case err == nil && existing == emoji:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM reactions WHERE message_id = $1 AND user_id = $2
		`, messageID, userID); err != nil {
			return false, fmt.Errorf("delete reaction: %w", err)
		}
	default:
		if err == nil {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM reactions WHERE message_id = $1 AND user_id = $2
			`, messageID, userID); err != nil {
				return false, fmt.Errorf("replace reaction: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
		`, messageID, userID, emoji); err != nil {
			return false, fmt.Errorf("insert reaction: %w", err)
		}
		reacted = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return reacted, nil
}

func (r *ReactionRepo) ListForMessage(ctx context.Context, messageID int64) ([]*domain.Reaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, user_id, emoji
		FROM reactions
		WHERE message_id = $1
		ORDER BY id ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var res []*domain.Reaction
	for rows.Next() {
		rc := &domain.Reaction{}
		if err := rows.Scan(&rc.ID, &rc.MessageID, &rc.UserID, &rc.Emoji); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		res = append(res, rc)
	}
	return res, rows.Err()
}
