package service

import (
	"context"
	"fmt"

	"relaychat/internal/domain"
)

// PresenceService tracks last-seen heartbeats. "Offline" is a derived
// read-time predicate over the stored timestamp; only explicit sign-out
// deletes the record, so a signed-out user reads offline immediately
// instead of waiting out the TTL.
type PresenceService struct {
	presence domain.PresenceRepository
	now      func() int64
}

func NewPresenceService(presence domain.PresenceRepository, now func() int64) *PresenceService {
	return &PresenceService{presence: presence, now: now}
}

// Heartbeat upserts lastSeen. Idempotent, safe to call on an interval.
func (s *PresenceService) Heartbeat(ctx context.Context, userID int64) error {
	if err := s.presence.Upsert(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// SetOffline deletes the presence record outright.
func (s *PresenceService) SetOffline(ctx context.Context, userID int64) error {
	if err := s.presence.Delete(ctx, userID); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}

// IsOnline reports whether a record exists and is within the TTL.
func (s *PresenceService) IsOnline(ctx context.Context, userID int64) (bool, error) {
	rec, err := s.presence.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get presence: %w", err)
	}
	return rec != nil && rec.Online(s.now()), nil
}

// ListOnlineIDs returns the ids of every user currently within the TTL.
func (s *PresenceService) ListOnlineIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.presence.ListSeenSince(ctx, s.now()-domain.OnlineTTLMillis)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	return ids, nil
}
