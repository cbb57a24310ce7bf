package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"relaychat/internal/domain"
)

type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

var _ domain.MembershipRepository = (*MembershipRepo)(nil)

const membershipColumns = `conversation_id, user_id, role, last_read_at`

func (r *MembershipRepo) Add(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, last_read_at)
		VALUES (?, ?, ?, ?)
	`, m.ConversationID, m.UserID, m.Role, m.LastReadAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *MembershipRepo) Get(ctx context.Context, conversationID, userID int64) (*domain.Membership, error) {
	m := &domain.Membership{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+`
		FROM conversation_members
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&m.ConversationID, &m.UserID, &m.Role, &m.LastReadAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (r *MembershipRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Membership, error) {
	return r.list(ctx, `
		SELECT `+membershipColumns+`
		FROM conversation_members
		WHERE user_id = ?
	`, userID)
}

func (r *MembershipRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.Membership, error) {
	return r.list(ctx, `
		SELECT `+membershipColumns+`
		FROM conversation_members
		WHERE conversation_id = ?
	`, conversationID)
}

func (r *MembershipRepo) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1
		FROM conversation_members
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return true, nil
}

func (r *MembershipRepo) SetLastReadAt(ctx context.Context, conversationID, userID, atMillis int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_members
		SET last_read_at = ?
		WHERE conversation_id = ? AND user_id = ?
	`, atMillis, conversationID, userID)
	if err != nil {
		return fmt.Errorf("set last read: %w", err)
	}
	return nil
}

func (r *MembershipRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var res []*domain.Membership
	for rows.Next() {
		m := &domain.Membership{}
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.Role, &m.LastReadAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
