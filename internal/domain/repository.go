package domain

import (
	"context"
)

// Lookup methods return (nil, nil) when the row does not exist; callers decide
// whether absence is an error.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetBySubject(ctx context.Context, subject string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// CreateWithMembers inserts the conversation and all memberships in one
	// transaction; a failure leaves nothing behind.
	CreateWithMembers(ctx context.Context, c *Conversation, members []*Membership) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	GetByDMKey(ctx context.Context, dmKey string) (*Conversation, error)
}

// MembershipRepository defines operations around conversation membership and
// per-member read cursors.
type MembershipRepository interface {
	Add(ctx context.Context, m *Membership) error
	Get(ctx context.Context, conversationID, userID int64) (*Membership, error)
	ListForUser(ctx context.Context, userID int64) ([]*Membership, error)
	ListForConversation(ctx context.Context, conversationID int64) ([]*Membership, error)
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	SetLastReadAt(ctx context.Context, conversationID, userID, atMillis int64) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Create assigns the message a created_at that is never below the
	// conversation's current maximum, so readers observe insertion order.
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListForConversation(ctx context.Context, conversationID int64) ([]*Message, error)
	LastForConversation(ctx context.Context, conversationID int64) (*Message, error)
	CountUnread(ctx context.Context, conversationID, userID, sinceMillis int64) (int, error)
	SoftDelete(ctx context.Context, id, atMillis int64) error
}

// PresenceRepository defines persistence for heartbeat records.
type PresenceRepository interface {
	Upsert(ctx context.Context, userID, lastSeenMillis int64) error
	Get(ctx context.Context, userID int64) (*PresenceRecord, error)
	Delete(ctx context.Context, userID int64) error
	ListSeenSince(ctx context.Context, cutoffMillis int64) ([]int64, error)
}

// TypingRepository defines persistence for typing intents.
type TypingRepository interface {
	Upsert(ctx context.Context, conversationID, userID, expiresAtMillis int64) error
	ListActive(ctx context.Context, conversationID, nowMillis int64) ([]*TypingRecord, error)
	DeleteExpired(ctx context.Context, conversationID, nowMillis int64) error
}

// ReactionRepository defines persistence for emoji reactions.
type ReactionRepository interface {
	// Toggle applies the one-reaction-per-user rule in a single transaction:
	// same emoji removes the row, a different emoji replaces it. Returns
	// whether a reaction is present for the user after the call.
	Toggle(ctx context.Context, messageID, userID int64, emoji string) (bool, error)
	ListForMessage(ctx context.Context, messageID int64) ([]*Reaction, error)
}
