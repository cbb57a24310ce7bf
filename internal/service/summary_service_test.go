package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryUnreadFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	e.clock.advance(1_000)
	_, err := e.msg.Append(ctx, alice.ID, convID, "hi")
	require.NoError(t, err)

	summaries, err := e.summaries.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, convID, s.ID)
	assert.Equal(t, "alice", s.Title)
	assert.Equal(t, 1, s.UnreadCount)
	require.NotNil(t, s.LastMessage)
	assert.Equal(t, "hi", *s.LastMessage)

	// the sender's own message is never unread for them
	own, err := e.summaries.GetSummary(ctx, convID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, own)
	assert.Equal(t, 0, own.UnreadCount)

	e.clock.advance(1_000)
	require.NoError(t, e.conv.MarkRead(ctx, bob.ID, convID))

	after, err := e.summaries.GetSummary(ctx, convID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, 0, after.UnreadCount)
}

func TestSummaryDeletedLastMessage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	msg, err := e.msg.Append(ctx, alice.ID, convID, "regret")
	require.NoError(t, err)
	e.clock.advance(500)
	_, err = e.msg.SoftDelete(ctx, alice.ID, msg.ID)
	require.NoError(t, err)

	s, err := e.summaries.GetSummary(ctx, convID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, s.LastMessage)
	assert.Equal(t, "Message deleted", *s.LastMessage)
	// a deleted message still counts as unread
	assert.Equal(t, 1, s.UnreadCount)
}

func TestSummaryGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	carol := e.mustUser(t, "carol")

	conv, err := e.conv.CreateGroup(ctx, alice.ID, "Team", []int64{bob.ID, carol.ID})
	require.NoError(t, err)

	s, err := e.summaries.GetSummary(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.IsGroup)
	assert.Equal(t, "Team", s.Title)
	assert.Equal(t, "3 members", s.Subtitle)
	assert.Nil(t, s.LastMessage)
	assert.Nil(t, s.LastMessageAt)
}

func TestSummaryDMPresence(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	convID := e.mustDM(t, alice, bob)

	require.NoError(t, e.presence.Heartbeat(ctx, bob.ID))
	e.clock.advance(1)

	s, err := e.summaries.GetSummary(ctx, convID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.IsOnline)
	assert.Equal(t, "bob", s.Title)
	assert.Equal(t, "Direct message", s.Subtitle)

	// reverse view: alice never heartbeated
	s, err = e.summaries.GetSummary(ctx, convID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.IsOnline)
}

func TestSummaryNonMemberGetsNil(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	carol := e.mustUser(t, "carol")
	convID := e.mustDM(t, alice, bob)

	s, err := e.summaries.GetSummary(ctx, convID, carol.ID)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSummarySortOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	carol := e.mustUser(t, "carol")

	dmBob := e.mustDM(t, alice, bob)
	dmCarol := e.mustDM(t, alice, carol)
	group, err := e.conv.CreateGroup(ctx, alice.ID, "Quiet", []int64{bob.ID})
	require.NoError(t, err)

	e.clock.advance(1_000)
	_, err = e.msg.Append(ctx, bob.ID, dmBob, "older")
	require.NoError(t, err)

	e.clock.advance(1_000)
	_, err = e.msg.Append(ctx, carol.ID, dmCarol, "newer")
	require.NoError(t, err)

	summaries, err := e.summaries.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, dmCarol, summaries[0].ID)
	assert.Equal(t, dmBob, summaries[1].ID)
	// the conversation with no messages sorts last
	assert.Equal(t, group.ID, summaries[2].ID)
}
