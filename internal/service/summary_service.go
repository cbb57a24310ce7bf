package service

import (
	"context"
	"fmt"
	"sort"

	"relaychat/internal/domain"
	"relaychat/internal/security"
)

// SummaryService composes the conversation list and detail views from the
// directory, message store, presence tracker, and identity resolver. It only
// reads; every snapshot is assembled per call.
type SummaryService struct {
	conversations domain.ConversationRepository
	members       domain.MembershipRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	presence      domain.PresenceRepository
	encryptor     *security.Encryptor
	now           func() int64
}

func NewSummaryService(
	conversations domain.ConversationRepository,
	members domain.MembershipRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	presence domain.PresenceRepository,
	encryptor *security.Encryptor,
	now func() int64,
) *SummaryService {
	return &SummaryService{
		conversations: conversations,
		members:       members,
		messages:      messages,
		users:         users,
		presence:      presence,
		encryptor:     encryptor,
		now:           now,
	}
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID            int64   `json:"id"`
	IsGroup       bool    `json:"is_group"`
	Title         string  `json:"title"`
	Subtitle      string  `json:"subtitle"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	LastMessage   *string `json:"last_message"`
	LastMessageAt *int64  `json:"last_message_at"`
	UnreadCount   int     `json:"unread_count"`
	IsOnline      bool    `json:"is_online"`
}

// ListForUser returns every conversation the user belongs to, newest activity
// first; conversations with no messages sort last.
func (s *SummaryService) ListForUser(ctx context.Context, userID int64) ([]*ConversationSummary, error) {
	memberships, err := s.members.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	onlineIDs, err := s.presence.ListSeenSince(ctx, s.now()-domain.OnlineTTLMillis)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	onlineSet := make(map[int64]struct{}, len(onlineIDs))
	for _, id := range onlineIDs {
		onlineSet[id] = struct{}{}
	}

	res := make([]*ConversationSummary, 0, len(memberships))
	for _, membership := range memberships {
		summary, err := s.compose(ctx, membership, onlineSet)
		if err != nil {
			return nil, err
		}
		if summary == nil {
			continue
		}
		res = append(res, summary)
	}

	sort.SliceStable(res, func(i, j int) bool {
		return lastMessageMillis(res[i]) > lastMessageMillis(res[j])
	})
	return res, nil
}

// GetSummary returns the viewer's summary of a single conversation, or nil
// when the viewer has no membership. Nil, not an error: non-members must not
// learn whether the conversation exists.
func (s *SummaryService) GetSummary(ctx context.Context, conversationID, viewerID int64) (*ConversationSummary, error) {
	membership, err := s.members.Get(ctx, conversationID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if membership == nil {
		return nil, nil
	}

	onlineIDs, err := s.presence.ListSeenSince(ctx, s.now()-domain.OnlineTTLMillis)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	onlineSet := make(map[int64]struct{}, len(onlineIDs))
	for _, id := range onlineIDs {
		onlineSet[id] = struct{}{}
	}

	return s.compose(ctx, membership, onlineSet)
}

func (s *SummaryService) compose(ctx context.Context, membership *domain.Membership, onlineSet map[int64]struct{}) (*ConversationSummary, error) {
	conv, err := s.conversations.GetByID(ctx, membership.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, nil
	}

	summary := &ConversationSummary{
		ID:      conv.ID,
		IsGroup: conv.IsGroup,
		Title:   "Conversation",
	}

	allMembers, err := s.members.ListForConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	if conv.IsGroup {
		if conv.Name != nil {
			summary.Title = *conv.Name
		}
		summary.Subtitle = fmt.Sprintf("%d members", len(allMembers))
	} else {
		summary.Subtitle = "Direct message"
		for _, m := range allMembers {
			if m.UserID == membership.UserID {
				continue
			}
			other, err := s.users.GetByID(ctx, m.UserID)
			if err != nil {
				return nil, fmt.Errorf("get other member: %w", err)
			}
			if other == nil {
				break
			}
			summary.Title = other.Name
			if other.Username != nil {
				summary.Subtitle = *other.Username
			}
			summary.AvatarURL = other.AvatarURL
			_, summary.IsOnline = onlineSet[other.ID]
			break
		}
	}

	last, err := s.messages.LastForConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("last message: %w", err)
	}
	if last != nil {
		preview := deletedPlaceholder
		if !last.Deleted() {
			if plain, err := s.encryptor.Decrypt(last.Body); err == nil {
				preview = plain
			} else {
				preview = last.Body
			}
		}
		summary.LastMessage = &preview
		summary.LastMessageAt = &last.CreatedAt
	}

	unread, err := s.messages.CountUnread(ctx, conv.ID, membership.UserID, membership.LastReadAt)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	summary.UnreadCount = unread

	return summary, nil
}

func lastMessageMillis(s *ConversationSummary) int64 {
	if s.LastMessageAt == nil {
		return 0
	}
	return *s.LastMessageAt
}
