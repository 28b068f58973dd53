// File: internal/repository/message/message_repository.go
package message

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

var ErrMessageNotFound = errors.New("message not found")

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if err := validateMessage(message); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		log.Error().Err(err).Str("chat_id", message.ChatID).Msg("[MessageRepository] create failed")
		return fmt.Errorf("database error creating message: %w", err)
	}
	log.Debug().
		Str("message_id", message.ID).
		Str("chat_id", message.ChatID).
		Str("role", message.Role.String()).
		Msg("[MessageRepository] message created")
	return nil
}

func (r *gormMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, ErrMessageNotFound
	}
	var msg domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("database error finding message: %w", err)
	}
	return &msg, nil
}

func (r *gormMessageRepository) FindVisibleByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND archived = ?", chatID, false).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("[MessageRepository] list failed")
		return nil, fmt.Errorf("database error fetching messages: %w", err)
	}
	return messages, nil
}

func (r *gormMessageRepository) FindAllByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("database error fetching messages: %w", err)
	}
	return messages, nil
}

// UpdateContent overwrites the content of a message, keeping its id and
// createdAt. An edited message is always visible again.
func (r *gormMessageRepository) UpdateContent(ctx context.Context, messageID, content string, editedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"content":   content,
			"archived":  false,
			"edited_at": editedAt,
		})
	if result.Error != nil {
		log.Error().Err(result.Error).Str("message_id", messageID).Msg("[MessageRepository] update failed")
		return fmt.Errorf("database error updating message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ArchiveAfter hides every message in the chat created strictly after the
// given instant and reports how many rows changed.
func (r *gormMessageRepository) ArchiveAfter(ctx context.Context, chatID string, after time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_id = ? AND created_at > ? AND archived = ?", chatID, after, false).
		UpdateColumn("archived", true)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("chat_id", chatID).Msg("[MessageRepository] archive failed")
		return 0, fmt.Errorf("database error archiving messages: %w", result.Error)
	}
	log.Debug().Str("chat_id", chatID).Int64("archived", result.RowsAffected).Msg("[MessageRepository] messages archived")
	return result.RowsAffected, nil
}

func (r *gormMessageRepository) DeleteByChatID(ctx context.Context, chatID string) error {
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.Message{}).Error; err != nil {
		return fmt.Errorf("database error deleting messages: %w", err)
	}
	return nil
}

func validateMessage(m *domain.Message) error {
	if m == nil {
		return errors.New("message cannot be nil")
	}
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("message ID is required")
	}
	if strings.TrimSpace(m.ChatID) == "" {
		return errors.New("chat ID is required")
	}
	if !m.Role.Valid() {
		return &domain.ErrUnknownRole{Value: string(m.Role)}
	}
	if m.CreatedAt.IsZero() {
		return errors.New("created at is required")
	}
	return nil
}
