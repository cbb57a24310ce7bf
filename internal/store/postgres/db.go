package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations. Timestamps are Unix milliseconds,
// matching the sqlite store.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL    PRIMARY KEY,
			subject    VARCHAR(100) UNIQUE NOT NULL,
			name       VARCHAR(100) NOT NULL,
			username   VARCHAR(50),
			email      VARCHAR(100) NOT NULL DEFAULT '',
			avatar_url TEXT,
			hashed_password VARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,

		// UNIQUE dm_key carries the one-DM-per-pair guarantee under races;
		// NULLs (groups) never collide.
		`CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL    PRIMARY KEY,
			is_group   BOOLEAN      NOT NULL DEFAULT FALSE,
			name       VARCHAR(100),
			dm_key     VARCHAR(100) UNIQUE,
			created_at BIGINT       NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id),
			user_id         BIGINT      NOT NULL REFERENCES users(id),
			role            VARCHAR(10) NOT NULL DEFAULT 'member',
			last_read_at    BIGINT      NOT NULL DEFAULT 0,
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT    NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT    NOT NULL REFERENCES users(id),
			body            TEXT      NOT NULL,
			created_at      BIGINT    NOT NULL,
			deleted_at      BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS presence (
			user_id   BIGINT PRIMARY KEY REFERENCES users(id),
			last_seen BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS typing (
			conversation_id BIGINT NOT NULL REFERENCES conversations(id),
			user_id         BIGINT NOT NULL REFERENCES users(id),
			expires_at      BIGINT NOT NULL,
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS reactions (
			id         BIGSERIAL   PRIMARY KEY,
			message_id BIGINT      NOT NULL REFERENCES messages(id),
			user_id    BIGINT      NOT NULL REFERENCES users(id),
			emoji      VARCHAR(16) NOT NULL,
			UNIQUE (message_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_name ON users(name)`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON conversation_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_typing_conv ON typing(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
