package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
)

func TestTypingWindow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	start := e.clock.now()
	require.NoError(t, e.typing.Signal(ctx, alice.ID, convID))

	// visible to the other member inside the window
	typers, err := e.typing.ListActive(ctx, convID, bob.ID, start+domain.TypingTTLMillis-1)
	require.NoError(t, err)
	require.Len(t, typers, 1)
	assert.Equal(t, alice.ID, typers[0].UserID)
	assert.Equal(t, "alice", typers[0].Name)

	// gone once the window has elapsed
	typers, err = e.typing.ListActive(ctx, convID, bob.ID, start+domain.TypingTTLMillis)
	require.NoError(t, err)
	assert.Empty(t, typers)
}

func TestTypingExcludesViewer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	now := e.clock.now()
	require.NoError(t, e.typing.Signal(ctx, alice.ID, convID))
	require.NoError(t, e.typing.Signal(ctx, bob.ID, convID))

	typers, err := e.typing.ListActive(ctx, convID, alice.ID, now+1)
	require.NoError(t, err)
	require.Len(t, typers, 1)
	assert.Equal(t, bob.ID, typers[0].UserID)
}

func TestTypingSignalRefreshes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	require.NoError(t, e.typing.Signal(ctx, alice.ID, convID))

	// re-signal near expiry pushes the window forward
	e.clock.advance(domain.TypingTTLMillis - 100)
	require.NoError(t, e.typing.Signal(ctx, alice.ID, convID))

	typers, err := e.typing.ListActive(ctx, convID, bob.ID, e.clock.now()+domain.TypingTTLMillis-1)
	require.NoError(t, err)
	assert.Len(t, typers, 1)
}

func TestTypingReapsExpiredRows(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	require.NoError(t, e.typing.Signal(ctx, alice.ID, convID))
	e.clock.advance(domain.TypingTTLMillis * 2)

	_, err := e.typing.ListActive(ctx, convID, bob.ID, e.clock.now())
	require.NoError(t, err)

	var count int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM typing WHERE conversation_id = ?`, convID).Scan(&count))
	assert.Equal(t, 0, count)
}
