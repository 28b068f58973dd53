package chat

import (
	"context"
	"time"

	"github.com/iyunix/go-chat/internal/domain"
)

// ChatRepository handles chat data operations. Every read that serves a user
// request is scoped by owner.
type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) error
	FindByID(ctx context.Context, chatID string) (*domain.Chat, error)
	FindOwned(ctx context.Context, chatID, ownerID string) (*domain.Chat, error)
	FindByOwnerID(ctx context.Context, ownerID string) ([]domain.Chat, error)
	TouchUpdatedAt(ctx context.Context, chatID string, at time.Time) error
	Delete(ctx context.Context, chatID, ownerID string) error
}
