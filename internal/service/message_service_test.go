package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
)

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		msg, err := e.msg.Append(ctx, alice.ID, convID, "  hello bob  ")
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, e.clock.now(), msg.CreatedAt)

		// stored body is encrypted, not the plaintext
		var stored string
		require.NoError(t, e.db.QueryRow(`SELECT body FROM messages WHERE id = ?`, msg.ID).Scan(&stored))
		assert.NotEqual(t, "hello bob", stored)

		views, err := e.msg.List(ctx, bob.ID, convID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "hello bob", views[0].Body)
		assert.Equal(t, alice.ID, views[0].SenderID)
		assert.Equal(t, "alice", views[0].SenderName)
		assert.False(t, views[0].IsMine)
		assert.False(t, views[0].Deleted)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		_, err := e.msg.Append(ctx, alice.ID, convID, "   ")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("BodyTooLong", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		_, err := e.msg.Append(ctx, alice.ID, convID, strings.Repeat("x", 5001))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("NonMember", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		carol := e.mustUser(t, "carol")
		convID := e.mustDM(t, alice, bob)

		_, err := e.msg.Append(ctx, carol.ID, convID, "let me in")
		assert.ErrorIs(t, err, domain.ErrNotAMember)
	})

	t.Run("UnknownConversation", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		_, err := e.msg.Append(ctx, alice.ID, 777, "hello?")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMessageOrdering(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	e.clock.set(2_000_000)
	first, err := e.msg.Append(ctx, alice.ID, convID, "first")
	require.NoError(t, err)

	// wall clock jumps backwards; stored order must still follow insertion
	e.clock.set(1_500_000)
	second, err := e.msg.Append(ctx, bob.ID, convID, "second")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.CreatedAt, first.CreatedAt)

	views, err := e.msg.List(ctx, alice.ID, convID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "first", views[0].Body)
	assert.Equal(t, "second", views[1].Body)
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("RedactsForEveryone", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		msg, err := e.msg.Append(ctx, alice.ID, convID, "oops")
		require.NoError(t, err)

		e.clock.advance(1_000)
		deleted, err := e.msg.SoftDelete(ctx, alice.ID, msg.ID)
		require.NoError(t, err)
		require.NotNil(t, deleted.DeletedAt)

		for _, viewer := range []int64{alice.ID, bob.ID} {
			views, err := e.msg.List(ctx, viewer, convID)
			require.NoError(t, err)
			require.Len(t, views, 1)
			assert.Equal(t, "Message deleted", views[0].Body)
			assert.True(t, views[0].Deleted)
		}
	})

	t.Run("OnlySenderMayDelete", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		msg, err := e.msg.Append(ctx, alice.ID, convID, "mine")
		require.NoError(t, err)

		_, err = e.msg.SoftDelete(ctx, bob.ID, msg.ID)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})

	t.Run("Idempotent", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		msg, err := e.msg.Append(ctx, alice.ID, convID, "twice")
		require.NoError(t, err)

		e.clock.advance(1_000)
		first, err := e.msg.SoftDelete(ctx, alice.ID, msg.ID)
		require.NoError(t, err)

		e.clock.advance(1_000)
		second, err := e.msg.SoftDelete(ctx, alice.ID, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, first.DeletedAt, second.DeletedAt)
	})

	t.Run("UnknownMessage", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		_, err := e.msg.SoftDelete(ctx, alice.ID, 12345)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListMessagesNonMember(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	carol := e.mustUser(t, "carol")
	convID := e.mustDM(t, alice, bob)

	_, err := e.msg.Append(ctx, alice.ID, convID, "secret")
	require.NoError(t, err)

	views, err := e.msg.List(ctx, carol.ID, convID)
	require.NoError(t, err)
	assert.Empty(t, views)
}
