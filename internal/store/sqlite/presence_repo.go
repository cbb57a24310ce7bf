package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"relaychat/internal/domain"
)

type PresenceRepo struct {
	db *sql.DB
}

func NewPresenceRepo(db *sql.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

var _ domain.PresenceRepository = (*PresenceRepo)(nil)

func (r *PresenceRepo) Upsert(ctx context.Context, userID, lastSeenMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO presence (user_id, last_seen)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET last_seen = excluded.last_seen
	`, userID, lastSeenMillis)
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

func (r *PresenceRepo) Get(ctx context.Context, userID int64) (*domain.PresenceRecord, error) {
	p := &domain.PresenceRecord{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, last_seen FROM presence WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}
	return p, nil
}

func (r *PresenceRepo) Delete(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM presence WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete presence: %w", err)
	}
	return nil
}

func (r *PresenceRepo) ListSeenSince(ctx context.Context, cutoffMillis int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM presence WHERE last_seen > ?
	`, cutoffMillis)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
