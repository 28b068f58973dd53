// File: internal/repository/chat/chat_repository.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/iyunix/go-chat/internal/domain"
)

var ErrChatNotFound = errors.New("chat not found")

type gormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if err := validateChat(chat); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if chat.Visibility == "" {
		chat.Visibility = domain.VisibilityPrivate
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}

	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		log.Error().Err(err).Str("owner_id", chat.OwnerID).Msg("[ChatRepository] create failed")
		return fmt.Errorf("database error creating chat: %w", err)
	}
	log.Debug().Str("chat_id", chat.ID).Msg("[ChatRepository] chat created")
	return nil
}

func (r *gormChatRepository) FindByID(ctx context.Context, chatID string) (*domain.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrChatNotFound
	}
	var chat domain.Chat
	err := r.db.WithContext(ctx).Where("id = ?", chatID).First(&chat).Error
	return handleFindError(err, &chat, "FindByID")
}

// FindOwned returns ErrChatNotFound both when the chat is missing and when it
// belongs to someone else, so callers cannot probe for foreign ids.
func (r *gormChatRepository) FindOwned(ctx context.Context, chatID, ownerID string) (*domain.Chat, error) {
	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(ownerID) == "" {
		return nil, ErrChatNotFound
	}
	var chat domain.Chat
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", chatID, ownerID).
		First(&chat).Error
	return handleFindError(err, &chat, "FindOwned")
}

func (r *gormChatRepository) FindByOwnerID(ctx context.Context, ownerID string) ([]domain.Chat, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("invalid owner ID")
	}
	var chats []domain.Chat
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC, created_at DESC").
		Find(&chats).Error
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("[ChatRepository] list failed")
		return nil, fmt.Errorf("database error fetching chats: %w", err)
	}
	return chats, nil
}

// TouchUpdatedAt advances updated_at to at. The column never moves backwards,
// so concurrent or retried touches are harmless.
func (r *gormChatRepository) TouchUpdatedAt(ctx context.Context, chatID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND updated_at < ?", chatID, at).
		UpdateColumn("updated_at", at)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("chat_id", chatID).Msg("[ChatRepository] touch failed")
		return fmt.Errorf("database error updating chat timestamp: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either already newer or missing; only the latter is an error.
		if _, err := r.FindByID(ctx, chatID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the chat and all of its messages.
func (r *gormChatRepository) Delete(ctx context.Context, chatID, ownerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", chatID, ownerID).Delete(&domain.Chat{})
		if result.Error != nil {
			log.Error().Err(result.Error).Str("chat_id", chatID).Msg("[ChatRepository] delete failed")
			return fmt.Errorf("database error deleting chat: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrChatNotFound
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&domain.Message{}).Error; err != nil {
			return fmt.Errorf("database error deleting messages: %w", err)
		}
		log.Debug().Str("chat_id", chatID).Msg("[ChatRepository] chat deleted")
		return nil
	})
}

func handleFindError(err error, chat *domain.Chat, operation string) (*domain.Chat, error) {
	if err == nil {
		return chat, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	log.Error().Err(err).Str("op", operation).Msg("[ChatRepository] query failed")
	return nil, fmt.Errorf("database error in %s: %w", operation, err)
}

func validateChat(chat *domain.Chat) error {
	if chat == nil {
		return errors.New("chat cannot be nil")
	}
	if strings.TrimSpace(chat.ID) == "" {
		return errors.New("chat ID is required")
	}
	if strings.TrimSpace(chat.OwnerID) == "" {
		return errors.New("owner ID is required")
	}
	if strings.TrimSpace(chat.Title) == "" {
		return errors.New("chat title cannot be empty")
	}
	if len(chat.Title) > 200 {
		return errors.New("chat title too long (max 200 characters)")
	}
	if chat.CreatedAt.IsZero() {
		return errors.New("created at is required")
	}
	return nil
}
