//go:generate go run go.uber.org/mock/mockgen -source=storage.go -destination=../mocks/mock_storage.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"

	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, message domain.Message) error
	// MarkSeen flips every unseen sender->receiver message and returns how many changed.
	MarkSeen(ctx context.Context, senderID, receiverID string) (int, error)
	// MarkOneSeen flips a single message, only when receiverID is its receiver.
	MarkOneSeen(ctx context.Context, id uuid.UUID, receiverID string) (domain.Message, error)
	CountUnseen(ctx context.Context, senderID, receiverID string) (int, error)
	// GetConversation returns both directions between a and b, oldest first.
	GetConversation(ctx context.Context, a, b string) ([]domain.Message, error)
}

type IUserRepository interface {
	CreateUser(ctx context.Context, identity domain.Identity) (string, error)
	GetUser(ctx context.Context, id string) (domain.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (domain.Identity, error)
	ListUsers(ctx context.Context) ([]domain.Identity, error)
	// UpdateProfile replaces the editable fields of identity id and returns the updated identity.
	UpdateProfile(ctx context.Context, id string, profile domain.Profile) (domain.Identity, error)
	SetOnline(ctx context.Context, id string, online bool) error
	// ResetPresence marks every identity offline and returns how many were flipped.
	ResetPresence(ctx context.Context) (int, error)
}
