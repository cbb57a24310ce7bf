package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat/internal/domain"
	"relaychat/internal/service"
)

func TestDMKey(t *testing.T) {
	assert.Equal(t, "3|7", service.DMKey(3, 7))
	assert.Equal(t, "3|7", service.DMKey(7, 3))
	assert.Equal(t, "5|5", service.DMKey(5, 5))
}

func TestResolveDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesOnce", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")

		first, err := e.conv.ResolveDirect(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		// resolving from the other side returns the same conversation
		second, err := e.conv.ResolveDirect(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		conv, err := e.conversations.GetByID(ctx, first)
		require.NoError(t, err)
		require.NotNil(t, conv)
		assert.False(t, conv.IsGroup)
		require.NotNil(t, conv.DMKey)
		assert.Equal(t, service.DMKey(alice.ID, bob.ID), *conv.DMKey)

		members, err := e.conv.MemberIDs(ctx, first)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{alice.ID, bob.ID}, members)
	})

	t.Run("SelfDM", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		_, err := e.conv.ResolveDirect(ctx, alice.ID, alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("UnknownOtherUser", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		_, err := e.conv.ResolveDirect(ctx, alice.ID, 9999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ConcurrentResolvers", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")

		const n = 8
		ids := make([]int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := alice.ID, bob.ID
				if i%2 == 1 {
					a, b = b, a
				}
				id, err := e.conv.ResolveDirect(ctx, a, b)
				assert.NoError(t, err)
				ids[i] = id
			}(i)
		}
		wg.Wait()

		for i := 1; i < n; i++ {
			assert.Equal(t, ids[0], ids[i])
		}
	})

	t.Run("HealsMissingMembership", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		_, err := e.db.Exec(`DELETE FROM conversation_members WHERE conversation_id = ? AND user_id = ?`, convID, alice.ID)
		require.NoError(t, err)

		again, err := e.conv.ResolveDirect(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, convID, again)

		member, err := e.members.Get(ctx, convID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, member)
		assert.Equal(t, domain.RoleMember, member.Role)
		assert.Equal(t, int64(0), member.LastReadAt)
	})
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("RequesterOwnsGroup", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		carol := e.mustUser(t, "carol")

		conv, err := e.conv.CreateGroup(ctx, alice.ID, "  Team  ", []int64{bob.ID, carol.ID, alice.ID, bob.ID})
		require.NoError(t, err)
		require.NotNil(t, conv)
		assert.True(t, conv.IsGroup)
		require.NotNil(t, conv.Name)
		assert.Equal(t, "Team", *conv.Name)
		assert.Nil(t, conv.DMKey)

		members, err := e.members.ListForConversation(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)
		roles := make(map[int64]string)
		for _, m := range members {
			roles[m.UserID] = m.Role
		}
		assert.Equal(t, domain.RoleOwner, roles[alice.ID])
		assert.Equal(t, domain.RoleMember, roles[bob.ID])
		assert.Equal(t, domain.RoleMember, roles[carol.ID])
	})

	t.Run("EmptyName", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")

		_, err := e.conv.CreateGroup(ctx, alice.ID, "   ", []int64{bob.ID})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("RequesterAlone", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		_, err := e.conv.CreateGroup(ctx, alice.ID, "Solo", []int64{alice.ID})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("UnknownMember", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")

		_, err := e.conv.CreateGroup(ctx, alice.ID, "Ghosts", []int64{4242})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// nothing left behind
		var count int
		require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count))
		assert.Equal(t, 0, count)
	})
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("AdvancesCursor", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		convID := e.mustDM(t, alice, bob)

		e.clock.set(5_000_000)
		require.NoError(t, e.conv.MarkRead(ctx, alice.ID, convID))

		member, err := e.members.Get(ctx, convID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, member)
		assert.Equal(t, int64(5_000_000), member.LastReadAt)

		// the other member's cursor is untouched
		other, err := e.members.Get(ctx, convID, bob.ID)
		require.NoError(t, err)
		require.NotNil(t, other)
		assert.Equal(t, int64(0), other.LastReadAt)
	})

	t.Run("NonMemberIsNoop", func(t *testing.T) {
		e := newEnv(t)
		alice := e.mustUser(t, "alice")
		bob := e.mustUser(t, "bob")
		carol := e.mustUser(t, "carol")
		convID := e.mustDM(t, alice, bob)

		assert.NoError(t, e.conv.MarkRead(ctx, carol.ID, convID))

		member, err := e.members.Get(ctx, convID, carol.ID)
		require.NoError(t, err)
		assert.Nil(t, member)
	})
}
