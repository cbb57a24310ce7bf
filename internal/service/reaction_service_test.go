package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
)

func TestToggleReaction(t *testing.T) {
	ctx := context.Background()

	t.Run("ToggleOnOff", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)
		msg, err := e.msg.Append(ctx, alice.ID, convID, "react to me")
		require.NoError(t, err)

		require.NoError(t, e.reaction.Toggle(ctx, bob.ID, msg.ID, "👍"))
		groups, err := e.reaction.ListForMessage(ctx, msg.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "👍", groups[0].Emoji)
		assert.Equal(t, 1, groups[0].Count)
		assert.True(t, groups[0].ViewerReacted)

		// same emoji again removes it
		require.NoError(t, e.reaction.Toggle(ctx, bob.ID, msg.ID, "👍"))
		groups, err = e.reaction.ListForMessage(ctx, msg.ID, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("DifferentEmojiReplaces", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)
		msg, err := e.msg.Append(ctx, alice.ID, convID, "pick one")
		require.NoError(t, err)

		require.NoError(t, e.reaction.Toggle(ctx, bob.ID, msg.ID, "👍"))
		require.NoError(t, e.reaction.Toggle(ctx, bob.ID, msg.ID, "❤️"))

		groups, err := e.reaction.ListForMessage(ctx, msg.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "❤️", groups[0].Emoji)
		assert.Equal(t, 1, groups[0].Count)
	})

	t.Run("InvalidEmoji", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)
		msg, err := e.msg.Append(ctx, alice.ID, convID, "no pizza")
		require.NoError(t, err)

		err = e.reaction.Toggle(ctx, bob.ID, msg.ID, "🍕")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("UnknownMessage", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		err := e.reaction.Toggle(ctx, alice.ID, 999, "👍")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestToggleReactionConcurrent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)
	msg, err := e.msg.Append(ctx, alice.ID, convID, "spam the button")
	require.NoError(t, err)

	// an odd number of racing toggles must land on exactly one row
	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.reaction.Toggle(ctx, bob.ID, msg.ID, "👍"))
		}()
	}
	wg.Wait()

	groups, err := e.reaction.ListForMessage(ctx, msg.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Count)
}

func TestListReactionsGrouping(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	carol := e.mustUser(t, "carol")
	conv, err := e.conv.CreateGroup(ctx, alice.ID, "Reactions", []int64{bob.ID, carol.ID})
	require.NoError(t, err)
	msg, err := e.msg.Append(ctx, alice.ID, conv.ID, "popular")
	require.NoError(t, err)

	require.NoError(t, e.reaction.Toggle(ctx, alice.ID, msg.ID, "😂"))
	require.NoError(t, e.reaction.Toggle(ctx, bob.ID, msg.ID, "👍"))
	require.NoError(t, e.reaction.Toggle(ctx, carol.ID, msg.ID, "😂"))

	groups, err := e.reaction.ListForMessage(ctx, msg.ID, carol.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// groups appear in first-seen order
	assert.Equal(t, "😂", groups[0].Emoji)
	assert.Equal(t, 2, groups[0].Count)
	assert.True(t, groups[0].ViewerReacted)

	assert.Equal(t, "👍", groups[1].Emoji)
	assert.Equal(t, 1, groups[1].Count)
	assert.False(t, groups[1].ViewerReacted)

	// an anonymous viewer never matches
	groups, err = e.reaction.ListForMessage(ctx, msg.ID, 0)
	require.NoError(t, err)
	for _, g := range groups {
		assert.False(t, g.ViewerReacted)
	}
}
