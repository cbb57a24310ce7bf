package service

import (
	"context"
	"fmt"
	"strings"

	"relaychat/internal/domain"
	"relaychat/internal/security"
)

const maxBodyRunes = 5000

// deletedPlaceholder is what readers see instead of a soft-deleted body.
const deletedPlaceholder = "Message deleted"

// MessageService appends, soft-deletes, and lists messages. Bodies are
// encrypted at rest and decrypted only when rendered into views.
type MessageService struct {
	conversations domain.ConversationRepository
	members       domain.MembershipRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	encryptor     *security.Encryptor
	now           func() int64
}

func NewMessageService(
	conversations domain.ConversationRepository,
	members domain.MembershipRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
	now func() int64,
) *MessageService {
	return &MessageService{
		conversations: conversations,
		members:       members,
		messages:      messages,
		users:         users,
		encryptor:     encryptor,
		now:           now,
	}
}

// Append stores a message. The repository clamps created_at so the stored
// order is monotonically non-decreasing with ties resolved by arrival.
func (s *MessageService) Append(ctx context.Context, senderID, conversationID int64, body string) (*domain.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}

	isMember, err := s.members.IsMember(ctx, conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return nil, domain.ErrNotAMember
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len([]rune(body)) > maxBodyRunes {
		return nil, domain.ErrInvalidArgument
	}

	encrypted, err := s.encryptor.Encrypt(body)
	if err != nil {
		return nil, fmt.Errorf("encrypt body: %w", err)
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           encrypted,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// SoftDelete marks the message deleted. Only the sender may delete; the body
// stays in storage but is never surfaced again. Idempotent for a message the
// requester already deleted.
func (s *MessageService) SoftDelete(ctx context.Context, requesterID, messageID int64) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if msg.SenderID != requesterID {
		return nil, domain.ErrNotOwner
	}
	if msg.Deleted() {
		return msg, nil
	}

	at := s.now()
	if err := s.messages.SoftDelete(ctx, messageID, at); err != nil {
		return nil, fmt.Errorf("soft delete: %w", err)
	}
	msg.DeletedAt = &at
	return msg, nil
}

// MessageView is a message annotated for a specific viewer.
type MessageView struct {
	ID           int64   `json:"id"`
	Body         string  `json:"body"`
	CreatedAt    int64   `json:"created_at"`
	SenderID     int64   `json:"sender_id"`
	SenderName   string  `json:"sender_name"`
	SenderAvatar *string `json:"sender_avatar,omitempty"`
	IsMine       bool    `json:"is_mine"`
	Deleted      bool    `json:"deleted"`
}

// List returns the conversation's messages in ascending creation order,
// annotated for the viewer. A viewer without a membership gets an empty
// list rather than an error, so non-members cannot probe for existence.
func (s *MessageService) List(ctx context.Context, viewerID, conversationID int64) ([]*MessageView, error) {
	isMember, err := s.members.IsMember(ctx, conversationID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return []*MessageView{}, nil
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// One lookup per distinct sender, not per message.
	senders := make(map[int64]*domain.User)
	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender, err = s.users.GetByID(ctx, m.SenderID)
			if err != nil {
				return nil, fmt.Errorf("resolve sender: %w", err)
			}
			senders[m.SenderID] = sender
		}
		views = append(views, s.view(m, sender, viewerID))
	}
	return views, nil
}

// Get exposes raw message lookup for callers that only hold an id.
func (s *MessageService) Get(ctx context.Context, messageID int64) (*domain.Message, error) {
	return s.messages.GetByID(ctx, messageID)
}

// View renders a single message for a viewer, resolving the sender.
func (s *MessageService) View(ctx context.Context, m *domain.Message, viewerID int64) (*MessageView, error) {
	sender, err := s.users.GetByID(ctx, m.SenderID)
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}
	return s.view(m, sender, viewerID), nil
}

func (s *MessageService) view(m *domain.Message, sender *domain.User, viewerID int64) *MessageView {
	v := &MessageView{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		SenderID:   m.SenderID,
		SenderName: "Unknown",
		IsMine:     m.SenderID == viewerID,
		Deleted:    m.Deleted(),
	}
	if sender != nil {
		v.SenderName = sender.Name
		v.SenderAvatar = sender.AvatarURL
	}
	if m.Deleted() {
		v.Body = deletedPlaceholder
		return v
	}
	if plain, err := s.encryptor.Decrypt(m.Body); err == nil {
		v.Body = plain
	} else {
		// pre-encryption rows read back as-is
		v.Body = m.Body
	}
	return v
}
