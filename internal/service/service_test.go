package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
	"relaychat/internal/security"
	"relaychat/internal/service"
	"relaychat/internal/store/sqlite"
)

// fakeClock is a mutable test clock handed to services as their now func.
type fakeClock struct {
	mu     sync.Mutex
	millis int64
}

func (c *fakeClock) now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

func (c *fakeClock) set(millis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis = millis
}

func (c *fakeClock) advance(millis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis += millis
}

type env struct {
	db    *sql.DB
	clock *fakeClock

	users         domain.UserRepository
	conversations domain.ConversationRepository
	members       domain.MembershipRepository
	messages      domain.MessageRepository
	presenceRepo  domain.PresenceRepository
	typingRepo    domain.TypingRepository
	reactions     domain.ReactionRepository

	identity  *service.IdentityService
	presence  *service.PresenceService
	typing    *service.TypingService
	conv      *service.ConversationService
	msg       *service.MessageService
	reaction  *service.ReactionService
	summaries *service.SummaryService
}

// newEnv wires every service against a fresh in-memory SQLite database and a
// fake clock starting at t=1_000_000ms.
func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and shared
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{millis: 1_000_000}

	encryptor, err := security.NewEncryptor([]byte("test-encryption-key"))
	require.NoError(t, err)

	e := &env{
		db:            db,
		clock:         clock,
		users:         sqlite.NewUserRepo(db),
		conversations: sqlite.NewConversationRepo(db),
		members:       sqlite.NewMembershipRepo(db),
		messages:      sqlite.NewMessageRepo(db),
		presenceRepo:  sqlite.NewPresenceRepo(db),
		typingRepo:    sqlite.NewTypingRepo(db),
		reactions:     sqlite.NewReactionRepo(db),
	}

	tokenSvc := security.NewTokenService("test-secret", time.Hour)
	hasher := security.NewPasswordHasher(4)

	e.identity = service.NewIdentityService(e.users, e.presenceRepo, tokenSvc, hasher, clock.now)
	e.presence = service.NewPresenceService(e.presenceRepo, clock.now)
	e.typing = service.NewTypingService(e.typingRepo, e.users, clock.now)
	e.conv = service.NewConversationService(e.conversations, e.members, e.users, clock.now)
	e.msg = service.NewMessageService(e.conversations, e.members, e.messages, e.users, encryptor, clock.now)
	e.reaction = service.NewReactionService(e.reactions, e.messages)
	e.summaries = service.NewSummaryService(e.conversations, e.members, e.messages, e.users, e.presenceRepo, encryptor, clock.now)

	return e
}

// mustUser inserts a user directly through the repository.
func (e *env) mustUser(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{
		Subject:   fmt.Sprintf("subject-%s", name),
		Name:      name,
		Email:     fmt.Sprintf("%s@example.com", name),
		CreatedAt: e.clock.now(),
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

// mustDM resolves (creating if needed) the direct conversation between two users.
func (e *env) mustDM(t *testing.T, a, b *domain.User) int64 {
	t.Helper()
	id, err := e.conv.ResolveDirect(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return id
}
