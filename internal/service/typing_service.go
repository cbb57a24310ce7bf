package service

import (
	"context"
	"fmt"

	"relaychat/internal/domain"
)

// TypingService tracks short-lived typing intents per (conversation, user).
// Clients are expected to throttle signals; the server stores whatever it is
// given and filters expiry at read time.
type TypingService struct {
	typing domain.TypingRepository
	users  domain.UserRepository
	now    func() int64
}

func NewTypingService(typing domain.TypingRepository, users domain.UserRepository, now func() int64) *TypingService {
	return &TypingService{typing: typing, users: users, now: now}
}

// Signal refreshes the caller's typing window in the conversation.
func (s *TypingService) Signal(ctx context.Context, userID, conversationID int64) error {
	if err := s.typing.Upsert(ctx, conversationID, userID, s.now()+domain.TypingTTLMillis); err != nil {
		return fmt.Errorf("signal typing: %w", err)
	}
	return nil
}

// TypingUser is an active typist resolved to a display name.
type TypingUser struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

// ListActive returns everyone typing in the conversation at nowMillis except
// the viewer. Expired rows are reaped opportunistically; correctness never
// depends on the reap.
func (s *TypingService) ListActive(ctx context.Context, conversationID, viewerID, nowMillis int64) ([]*TypingUser, error) {
	records, err := s.typing.ListActive(ctx, conversationID, nowMillis)
	if err != nil {
		return nil, fmt.Errorf("list typing: %w", err)
	}

	res := make([]*TypingUser, 0, len(records))
	for _, rec := range records {
		if rec.UserID == viewerID {
			continue
		}
		user, err := s.users.GetByID(ctx, rec.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolve typist: %w", err)
		}
		if user == nil {
			continue
		}
		res = append(res, &TypingUser{UserID: user.ID, Name: user.Name})
	}

	if err := s.typing.DeleteExpired(ctx, conversationID, nowMillis); err != nil {
		// reap failure is harmless; expired rows stay filtered at read time
		return res, nil
	}
	return res, nil
}
