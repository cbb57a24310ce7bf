package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent CREATE TABLE / CREATE INDEX statements.
// All timestamps are Unix milliseconds.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users synced from the identity provider.
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			subject VARCHAR(100) UNIQUE NOT NULL,
			name VARCHAR(100) NOT NULL,
			username VARCHAR(50),
			email VARCHAR(100) NOT NULL DEFAULT '',
			avatar_url TEXT,
			hashed_password VARCHAR(255) NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		// Conversations. The UNIQUE index on dm_key is what guarantees at
		// most one direct conversation per unordered pair even when two
		// resolvers race; NULLs (groups) never collide.
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			is_group BOOLEAN NOT NULL DEFAULT 0,
			name VARCHAR(100),
			dm_key VARCHAR(100) UNIQUE,
			created_at INTEGER NOT NULL
		);`,
		// Memberships with per-member read cursors.
		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role VARCHAR(10) NOT NULL DEFAULT 'member',
			last_read_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (conversation_id, user_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		// Messages. Bodies are encrypted at rest; deleted_at marks soft
		// deletion with the body retained.
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			sender_id INTEGER NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			deleted_at INTEGER,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (sender_id) REFERENCES users(id)
		);`,
		// Presence heartbeats, one row per user.
		`CREATE TABLE IF NOT EXISTS presence (
			user_id INTEGER PRIMARY KEY,
			last_seen INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		// Typing intents, one row per (conversation, user).
		`CREATE TABLE IF NOT EXISTS typing (
			conversation_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (conversation_id, user_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		// Reactions; the UNIQUE constraint enforces one reaction per
		// (message, user) at the storage layer.
		`CREATE TABLE IF NOT EXISTS reactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			emoji VARCHAR(16) NOT NULL,
			UNIQUE (message_id, user_id),
			FOREIGN KEY (message_id) REFERENCES messages(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_subject ON users(subject);`,
		`CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_dm_key ON conversations(dm_key);`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON conversation_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_members_conv ON conversation_members(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_typing_conv ON typing(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
