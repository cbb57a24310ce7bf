package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
)

func TestPresenceTTL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")

	online, err := e.presence.IsOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	online, err = e.presence.IsOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, online)

	// still online just inside the window
	e.clock.advance(domain.OnlineTTLMillis - 1)
	online, err = e.presence.IsOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, online)

	// at exactly the TTL the user reads offline
	e.clock.advance(1)
	online, err = e.presence.IsOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, online)

	// a fresh heartbeat revives the record
	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	online, err = e.presence.IsOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestSetOffline(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")

	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	require.NoError(t, e.presence.SetOffline(ctx, alice.ID))

	online, err := e.presence.IsOnline(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, online)

	// repeating the sign-out is harmless
	assert.NoError(t, e.presence.SetOffline(ctx, alice.ID))
}

func TestListOnlineIDs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.mustUser(t, "alice")
	bob := e.mustUser(t, "bob")
	carol := e.mustUser(t, "carol")

	require.NoError(t, e.presence.Heartbeat(ctx, alice.ID))
	require.NoError(t, e.presence.Heartbeat(ctx, bob.ID))

	e.clock.advance(domain.OnlineTTLMillis + 1)
	require.NoError(t, e.presence.Heartbeat(ctx, carol.ID))

	ids, err := e.presence.ListOnlineIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{carol.ID}, ids)
}
