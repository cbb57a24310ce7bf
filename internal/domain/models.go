package domain

// Timestamps throughout the domain are Unix milliseconds. Presence and typing
// expiry are plain comparisons against a caller-supplied clock, so keeping a
// single integer unit avoids time.Time truncation surprises in the stores.

// Contract constants shared with clients.
const (
	// OnlineTTLMillis is how long a presence heartbeat keeps a user online.
	OnlineTTLMillis int64 = 30_000
	// TypingTTLMillis is how long a typing signal stays visible.
	TypingTTLMillis int64 = 2_000
	// HeartbeatIntervalMillis is the recommended client heartbeat cadence,
	// well under the online TTL to tolerate one missed beat.
	HeartbeatIntervalMillis int64 = 15_000
	// TypingThrottleMillis is the recommended client-side throttle between
	// typing signals. The server stores whatever it is given.
	TypingThrottleMillis int64 = 600
)

// AllowedEmojis is the fixed reaction set. Anything else is rejected.
var AllowedEmojis = []string{"👍", "❤️", "😂", "😮", "😢"}

// Membership roles.
const (
	RoleMember = "member"
	RoleOwner  = "owner"
)

// User is an application user synced from the identity provider on sign-in.
// Subject is the immutable external id; users are never deleted here.
type User struct {
	ID             int64   `db:"id" json:"id"`
	Subject        string  `db:"subject" json:"-"`
	Name           string  `db:"name" json:"name"`
	Username       *string `db:"username" json:"username,omitempty"`
	Email          string  `db:"email" json:"email"`
	AvatarURL      *string `db:"avatar_url" json:"avatar_url,omitempty"`
	HashedPassword string  `db:"hashed_password" json:"-"`
	CreatedAt      int64   `db:"created_at" json:"created_at"`
}

// Conversation is a direct or group chat. DMKey is the canonical
// order-independent pair key and is set iff the conversation is not a group.
type Conversation struct {
	ID        int64   `db:"id" json:"id"`
	IsGroup   bool    `db:"is_group" json:"is_group"`
	Name      *string `db:"name" json:"name,omitempty"`
	DMKey     *string `db:"dm_key" json:"-"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
}

// Membership ties a user to a conversation. LastReadAt is 0 until the first
// markRead, so every message counts as unread before then.
type Membership struct {
	ConversationID int64  `db:"conversation_id"`
	UserID         int64  `db:"user_id"`
	Role           string `db:"role"`
	LastReadAt     int64  `db:"last_read_at"`
}

// Message is immutable once created except for DeletedAt. The body is kept in
// storage after a soft delete but never surfaced again.
type Message struct {
	ID             int64  `db:"id"`
	ConversationID int64  `db:"conversation_id"`
	SenderID       int64  `db:"sender_id"`
	Body           string `db:"body"`
	CreatedAt      int64  `db:"created_at"`
	DeletedAt      *int64 `db:"deleted_at"`
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// PresenceRecord holds the last heartbeat per user. Offline is a derived
// read-time predicate except for explicit sign-out, which deletes the row.
type PresenceRecord struct {
	UserID   int64 `db:"user_id"`
	LastSeen int64 `db:"last_seen"`
}

// Online reports whether the record is fresh at the given instant.
func (p *PresenceRecord) Online(nowMillis int64) bool {
	return nowMillis-p.LastSeen < OnlineTTLMillis
}

// TypingRecord holds a short-lived typing intent per (conversation, user).
// Expired rows are filtered at read time; no sweeper runs.
type TypingRecord struct {
	ConversationID int64 `db:"conversation_id"`
	UserID         int64 `db:"user_id"`
	ExpiresAt      int64 `db:"expires_at"`
}

// Active reports whether the record is still live at the given instant.
func (t *TypingRecord) Active(nowMillis int64) bool { return t.ExpiresAt > nowMillis }

// Reaction is a single (message, user, emoji) row. At most one row exists per
// (message, user); selecting a different emoji replaces the prior one.
type Reaction struct {
	ID        int64  `db:"id"`
	MessageID int64  `db:"message_id"`
	UserID    int64  `db:"user_id"`
	Emoji     string `db:"emoji"`
}

// EmojiAllowed reports whether the emoji is in the fixed reaction set.
func EmojiAllowed(emoji string) bool {
	for _, e := range AllowedEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}
