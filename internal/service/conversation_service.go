package service

import (
	"context"
	"fmt"
	"strings"

	"relaychat/internal/domain"
)

// ConversationService owns conversation resolution, membership, and read
// cursors.
type ConversationService struct {
	conversations domain.ConversationRepository
	members       domain.MembershipRepository
	users         domain.UserRepository
	dmLocks       *keyedMutex
	now           func() int64
}

func NewConversationService(
	conversations domain.ConversationRepository,
	members domain.MembershipRepository,
	users domain.UserRepository,
	now func() int64,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		members:       members,
		users:         users,
		dmLocks:       newKeyedMutex(),
		now:           now,
	}
}

// DMKey is the canonical order-independent key for a user pair: the two ids
// sorted ascending, joined with "|" (not a valid id character).
func DMKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d|%d", a, b)
}

// ResolveDirect returns the id of the single direct conversation for the pair,
// creating it (with both memberships) if absent. The per-key lock serializes
// local racers; the unique constraint on dm_key is the cross-process backstop,
// with the loser falling back to the winner's row.
//
// A requester whose membership in an existing DM has gone missing gets it
// re-inserted rather than an error, mirroring the product's re-entry behavior.
func (s *ConversationService) ResolveDirect(ctx context.Context, requesterID, otherID int64) (int64, error) {
	if requesterID == otherID {
		return 0, domain.ErrInvalidArgument
	}
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return 0, fmt.Errorf("get other user: %w", err)
	}
	if other == nil {
		return 0, domain.ErrNotFound
	}

	key := DMKey(requesterID, otherID)
	unlock := s.dmLocks.Lock(key)
	defer unlock()

	existing, err := s.conversations.GetByDMKey(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get by dm key: %w", err)
	}
	if existing != nil {
		return existing.ID, s.healMembership(ctx, existing.ID, requesterID)
	}

	conv := &domain.Conversation{
		IsGroup:   false,
		DMKey:     &key,
		CreatedAt: s.now(),
	}
	memberships := []*domain.Membership{
		{UserID: requesterID, Role: domain.RoleMember},
		{UserID: otherID, Role: domain.RoleMember},
	}
	if err := s.conversations.CreateWithMembers(ctx, conv, memberships); err != nil {
		// Lost the race across processes: the dm_key row exists now, reuse it.
		winner, getErr := s.conversations.GetByDMKey(ctx, key)
		if getErr == nil && winner != nil {
			return winner.ID, s.healMembership(ctx, winner.ID, requesterID)
		}
		return 0, fmt.Errorf("create dm: %w", err)
	}
	return conv.ID, nil
}

func (s *ConversationService) healMembership(ctx context.Context, conversationID, userID int64) error {
	member, err := s.members.Get(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if member != nil {
		return nil
	}
	return s.members.Add(ctx, &domain.Membership{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           domain.RoleMember,
		LastReadAt:     0,
	})
}

// CreateGroup creates a group conversation. The requester is always included
// and owns the group; everyone else joins as member. A validation failure
// leaves nothing behind.
func (s *ConversationService) CreateGroup(ctx context.Context, requesterID int64, name string, memberIDs []int64) (*domain.Conversation, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, domain.ErrInvalidArgument
	}

	seen := map[int64]struct{}{requesterID: {}}
	finalIDs := []int64{requesterID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		finalIDs = append(finalIDs, id)
	}
	if len(finalIDs) < 2 {
		return nil, domain.ErrInvalidArgument
	}

	for _, id := range finalIDs[1:] {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get member: %w", err)
		}
		if u == nil {
			return nil, domain.ErrNotFound
		}
	}

	conv := &domain.Conversation{
		IsGroup:   true,
		Name:      &trimmed,
		CreatedAt: s.now(),
	}
	memberships := make([]*domain.Membership, 0, len(finalIDs))
	for _, id := range finalIDs {
		role := domain.RoleMember
		if id == requesterID {
			role = domain.RoleOwner
		}
		memberships = append(memberships, &domain.Membership{UserID: id, Role: role})
	}
	if err := s.conversations.CreateWithMembers(ctx, conv, memberships); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return conv, nil
}

// MarkRead advances the caller's read cursor to now. Deliberately a no-op
// without a membership so duplicate client calls never error.
func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID int64) error {
	member, err := s.members.Get(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if member == nil {
		return nil
	}
	return s.members.SetLastReadAt(ctx, conversationID, userID, s.now())
}

// MemberIDs returns the user ids of every member, for event fan-out.
func (s *ConversationService) MemberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	memberships, err := s.members.ListForConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	ids := make([]int64, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	return ids, nil
}
