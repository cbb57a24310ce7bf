package service

import (
	"context"
	"fmt"

	"relaychat/internal/domain"
)

// ReactionService toggles emoji reactions and aggregates them per message.
type ReactionService struct {
	reactions domain.ReactionRepository
	messages  domain.MessageRepository
	locks     *keyedMutex
}

func NewReactionService(reactions domain.ReactionRepository, messages domain.MessageRepository) *ReactionService {
	return &ReactionService{
		reactions: reactions,
		messages:  messages,
		locks:     newKeyedMutex(),
	}
}

// Toggle applies one-reaction-per-user semantics: the same emoji toggles off,
// a different emoji replaces the prior one. Concurrent toggles for the same
// (message, user) are serialized so two rows can never survive.
func (s *ReactionService) Toggle(ctx context.Context, userID, messageID int64, emoji string) error {
	if !domain.EmojiAllowed(emoji) {
		return domain.ErrInvalidEmoji
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return domain.ErrNotFound
	}

	unlock := s.locks.Lock(fmt.Sprintf("%d|%d", messageID, userID))
	defer unlock()

	if _, err := s.reactions.Toggle(ctx, messageID, userID, emoji); err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}
	return nil
}

// ReactionGroup is one emoji's aggregate on a message.
type ReactionGroup struct {
	Emoji         string `json:"emoji"`
	Count         int    `json:"count"`
	ViewerReacted bool   `json:"viewer_reacted"`
}

// ListForMessage groups reactions by emoji in first-seen order. viewerID 0
// (no authenticated viewer) simply never matches a row.
func (s *ReactionService) ListForMessage(ctx context.Context, messageID, viewerID int64) ([]*ReactionGroup, error) {
	rows, err := s.reactions.ListForMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}

	index := make(map[string]*ReactionGroup)
	groups := make([]*ReactionGroup, 0, len(rows))
	for _, r := range rows {
		g, ok := index[r.Emoji]
		if !ok {
			g = &ReactionGroup{Emoji: r.Emoji}
			index[r.Emoji] = g
			groups = append(groups, g)
		}
		g.Count++
		if r.UserID == viewerID {
			g.ViewerReacted = true
		}
	}
	return groups, nil
}
