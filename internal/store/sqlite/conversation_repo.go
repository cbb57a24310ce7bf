package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"relaychat/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `id, is_group, name, dm_key, created_at`

func (r *ConversationRepo) CreateWithMembers(ctx context.Context, c *domain.Conversation, members []*domain.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (is_group, name, dm_key, created_at)
		VALUES (?, ?, ?, ?)
	`, c.IsGroup, c.Name, c.DMKey, c.CreatedAt)
	if err != nil {
		// A dm_key collision means another resolver won the race; the
		// caller falls back to the existing row.
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id

	for _, m := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, last_read_at)
			VALUES (?, ?, ?, ?)
		`, id, m.UserID, m.Role, m.LastReadAt); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		m.ConversationID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	return r.scanConversation(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
}

func (r *ConversationRepo) GetByDMKey(ctx context.Context, dmKey string) (*domain.Conversation, error) {
	return r.scanConversation(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE dm_key = ?`, dmKey)
}

func (r *ConversationRepo) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID,
		&c.IsGroup,
		&c.Name,
		&c.DMKey,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}
