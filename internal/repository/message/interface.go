// File: internal/repository/message/interface.go
package message

import (
	"context"
	"time"

	"github.com/iyunix/go-chat/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// FindVisibleByChatID returns non-archived messages in createdAt order.
	FindVisibleByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
	// FindAllByChatID includes archived messages.
	FindAllByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
	UpdateContent(ctx context.Context, messageID, content string, editedAt time.Time) error
	ArchiveAfter(ctx context.Context, chatID string, after time.Time) (int64, error)
	DeleteByChatID(ctx context.Context, chatID string) error
}
