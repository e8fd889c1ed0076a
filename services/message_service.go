package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IRelay is the part of the live relay the HTTP API goes through.
type IRelay interface {
	SendMessage(ctx context.Context, senderID, receiverID, text, image string) (runtime.RelayResult, error)
	MarkSeen(ctx context.Context, senderID, receiverID string) (int, error)
	Online() []string
}

type SidebarEntry struct {
	domain.Contact
	UnseenCount int `json:"unseenCount"`
}

// MessageService serves message history. Anything with a live side effect goes through the relay.
type MessageService struct {
	users    contract.IUserRepository
	messages contract.IMessageRepository
	relay    IRelay
}

func NewMessageService(users contract.IUserRepository, messages contract.IMessageRepository, relay IRelay) *MessageService {
	return &MessageService{users: users, messages: messages, relay: relay}
}

// Sidebar lists every other identity with how many of its messages me hasn't read.
// Online status comes from the live registry rather than the durable flag.
func (s *MessageService) Sidebar(ctx context.Context, me string) ([]SidebarEntry, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	online := lo.Keyify(s.relay.Online())

	entries := make([]SidebarEntry, 0, len(users))
	for _, user := range users {
		if user.ID == me {
			continue
		}
		unseen, err := s.messages.CountUnseen(ctx, user.ID, me)
		if err != nil {
			return nil, fmt.Errorf("count unseen from %s: %w", user.ID, err)
		}
		contact := user.Contact()
		_, contact.IsOnline = online[user.ID]
		entries = append(entries, SidebarEntry{Contact: contact, UnseenCount: unseen})
	}
	return entries, nil
}

// Conversation returns the history between me and peer, then marks what peer sent as read.
// The returned messages reflect the state before that acknowledgement.
func (s *MessageService) Conversation(ctx context.Context, me, peer string) ([]domain.Message, error) {
	if _, err := s.users.GetUser(ctx, peer); err != nil {
		return nil, err
	}
	messages, err := s.messages.GetConversation(ctx, me, peer)
	if err != nil {
		return nil, err
	}
	if _, err := s.relay.MarkSeen(ctx, peer, me); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MessageService) MarkOne(ctx context.Context, me string, messageID uuid.UUID) (domain.Message, error) {
	return s.messages.MarkOneSeen(ctx, messageID, me)
}

func (s *MessageService) Send(ctx context.Context, me, receiverID, text, image string) (runtime.RelayResult, error) {
	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		return runtime.RelayResult{}, err
	}
	return s.relay.SendMessage(ctx, me, receiverID, text, image)
}
