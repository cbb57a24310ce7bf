package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"relaychat/internal/domain"
	"relaychat/internal/security"
)

// IdentityService resolves authenticated principals to user records and keeps
// them in sync with what the sign-in flow reports. It is the only component
// that reads or writes users directly; everything else goes through it or
// holds ids.
type IdentityService struct {
	users    domain.UserRepository
	presence domain.PresenceRepository
	tokens   *security.TokenService
	hasher   *security.PasswordHasher
	now      func() int64
}

func NewIdentityService(
	users domain.UserRepository,
	presence domain.PresenceRepository,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
	now func() int64,
) *IdentityService {
	return &IdentityService{
		users:    users,
		presence: presence,
		tokens:   tokens,
		hasher:   hasher,
		now:      now,
	}
}

// ResolveSubject maps an identity subject to a user record. An empty or
// unknown subject is ErrUnauthenticated, never ErrNotFound; the caller
// cannot distinguish "no token" from "token for a user we never synced".
func (s *IdentityService) ResolveSubject(ctx context.Context, subject string) (*domain.User, error) {
	if subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("get user by subject: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

type RegisterInput struct {
	Name     string
	Username *string
	Email    string
	Password string
}

// Register creates a user with a freshly minted subject and returns a signed
// token for it.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, "", domain.ErrInvalidArgument
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, "", domain.ErrConflict
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Subject:        uuid.NewString(),
		Name:           name,
		Username:       in.Username,
		Email:          email,
		HashedPassword: hashed,
		CreatedAt:      s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.CreateForSubject(user.Subject)
	if err != nil {
		return nil, "", fmt.Errorf("create token: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and returns the user plus a signed token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil, "", domain.ErrUnauthenticated
	}
	if err := s.hasher.Verify(password, user.HashedPassword); err != nil {
		return nil, "", domain.ErrUnauthenticated
	}

	token, err := s.tokens.CreateForSubject(user.Subject)
	if err != nil {
		return nil, "", fmt.Errorf("create token: %w", err)
	}
	return user, token, nil
}

type SyncInput struct {
	Name      string
	Username  *string
	Email     string
	AvatarURL *string
}

// Sync upserts the profile fields reported by the sign-in flow. Called on
// every successful sign-in; users are never deleted here.
func (s *IdentityService) Sync(ctx context.Context, subject string, in SyncInput) (*domain.User, error) {
	if subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.GetBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("get user by subject: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Unknown"
	}

	if user != nil {
		user.Name = name
		if in.Username != nil {
			user.Username = in.Username
		}
		if in.Email != "" {
			user.Email = in.Email
		}
		if in.AvatarURL != nil {
			user.AvatarURL = in.AvatarURL
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return user, nil
	}

	user = &domain.User{
		Subject:   subject,
		Name:      name,
		Username:  in.Username,
		Email:     in.Email,
		AvatarURL: in.AvatarURL,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// DirectoryUser is a user-picker row with live presence.
type DirectoryUser struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	IsOnline  bool    `json:"is_online"`
}

// List returns every other user, optionally filtered by a case-insensitive
// name substring, each flagged with online status.
func (s *IdentityService) List(ctx context.Context, viewerID int64, search string) ([]*DirectoryUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	online, err := s.presence.ListSeenSince(ctx, s.now()-domain.OnlineTTLMillis)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	onlineSet := make(map[int64]struct{}, len(online))
	for _, id := range online {
		onlineSet[id] = struct{}{}
	}

	normalized := strings.ToLower(strings.TrimSpace(search))
	res := make([]*DirectoryUser, 0, len(users))
	for _, u := range users {
		if u.ID == viewerID {
			continue
		}
		if normalized != "" && !strings.Contains(strings.ToLower(u.Name), normalized) {
			continue
		}
		_, isOnline := onlineSet[u.ID]
		res = append(res, &DirectoryUser{
			ID:        u.ID,
			Name:      u.Name,
			AvatarURL: u.AvatarURL,
			IsOnline:  isOnline,
		})
	}
	return res, nil
}

// GetByID exposes user lookup for other components that hold only ids.
func (s *IdentityService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}
