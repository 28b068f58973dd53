// File: internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/repository/chat"
	"github.com/iyunix/go-chat/internal/repository/message"
	chatservice "github.com/iyunix/go-chat/internal/services/chat"
	"github.com/iyunix/go-chat/internal/turnlock"
)

// MemoryForgetter drops a chat's entries from long-term memory.
type MemoryForgetter interface {
	Forget(ctx context.Context, userID, chatID string) error
}

// ChatService is the facade the HTTP layer talks to: conversation CRUD,
// message editing and the streamed turn.
type ChatService struct {
	config        *chatservice.Config
	chatRepo      chat.ChatRepository
	messageRepo   message.MessageRepository
	streamService *chatservice.StreamingService
	clock         chatservice.Clock
	forgetter     MemoryForgetter
	logger        Logger
}

// ChatServiceDeps groups the collaborators of NewChatService. Memory, Locker,
// Clock and Logger are optional.
type ChatServiceDeps struct {
	Config      *chatservice.Config
	ChatRepo    chat.ChatRepository
	MessageRepo message.MessageRepository
	AI          chatservice.AIProvider
	Memory      interface {
		chatservice.MemoryProvider
		MemoryForgetter
	}
	Locker chatservice.TurnLocker
	Clock  chatservice.Clock
	Logger Logger
}

func NewChatService(deps ChatServiceDeps) (*ChatService, error) {
	if deps.ChatRepo == nil {
		return nil, chatservice.NewValidationError("constructor", "chat repository is required")
	}
	if deps.MessageRepo == nil {
		return nil, chatservice.NewValidationError("constructor", "message repository is required")
	}
	if deps.AI == nil {
		return nil, chatservice.NewValidationError("constructor", "AI service is required")
	}

	config := deps.Config
	if config == nil {
		config = chatservice.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, chatservice.NewValidationError("config", err.Error())
	}

	logger := deps.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	locker := deps.Locker
	if locker == nil {
		locker = turnlock.NewMemory()
	}
	clock := deps.Clock
	if clock == nil {
		clock = chatservice.NewMonotonicClock()
	}

	var (
		mem       chatservice.MemoryProvider
		forgetter MemoryForgetter
	)
	if deps.Memory != nil {
		mem, forgetter = deps.Memory, deps.Memory
	}

	streamService := chatservice.NewStreamingService(
		config, deps.ChatRepo, deps.MessageRepo, deps.AI, mem, locker, clock, logger,
	)

	return &ChatService{
		config:        config,
		chatRepo:      deps.ChatRepo,
		messageRepo:   deps.MessageRepo,
		streamService: streamService,
		clock:         clock,
		forgetter:     forgetter,
		logger:        logger,
	}, nil
}

// ListChats returns the owner's chats, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, ownerID string) ([]domain.Chat, error) {
	if ownerID == "" {
		return nil, chatservice.NewUnauthorizedError("list_chats")
	}
	chats, err := s.chatRepo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, chatservice.NewPersistenceError("list_chats", "could not load chats", err)
	}
	return chats, nil
}

// CreateChat creates an empty chat. A blank title becomes "New chat".
func (s *ChatService) CreateChat(ctx context.Context, ownerID, title string) (*domain.Chat, error) {
	if ownerID == "" {
		return nil, chatservice.NewUnauthorizedError("create_chat")
	}
	title = chatservice.TruncateText(chatservice.CleanWhitespace(title), s.config.TitleMaxLength)
	if title == "" {
		title = domain.DefaultChatTitle
	}

	now := s.clock.Now()
	newChat := &domain.Chat{
		ID:         uuid.NewString(),
		Title:      title,
		OwnerID:    ownerID,
		Visibility: domain.VisibilityPrivate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.chatRepo.Create(ctx, newChat); err != nil {
		return nil, chatservice.NewPersistenceError("create_chat", "could not create chat", err)
	}
	return newChat, nil
}

// GetMessages returns the visible messages of an owned chat in order.
func (s *ChatService) GetMessages(ctx context.Context, ownerID, chatID string) ([]domain.Message, error) {
	if err := s.RequireOwned(ctx, "get_messages", ownerID, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.FindVisibleByChatID(ctx, chatID)
	if err != nil {
		return nil, chatservice.NewPersistenceError("get_messages", "could not load messages", err)
	}
	return msgs, nil
}

// AppendMessage stores a message outside of a streamed turn and bumps the
// chat's activity timestamp.
func (s *ChatService) AppendMessage(ctx context.Context, ownerID, chatID string, role domain.Role, content string, attachments []domain.Attachment) (*domain.Message, error) {
	if !role.Valid() {
		return nil, chatservice.NewValidationError("append_message", "unknown message role "+string(role))
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, chatservice.NewValidationError("append_message", "content is required")
	}
	if err := s.RequireOwned(ctx, "append_message", ownerID, chatID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, "append_message", chatID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.clock.Now()
	msg := &domain.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Role:        role,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   now,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, chatservice.NewPersistenceError("append_message", "could not save message", err)
	}
	if err := s.chatRepo.TouchUpdatedAt(ctx, chatID, now); err != nil {
		s.logger.Warn("failed to bump chat timestamp", "chat_id", chatID, "error", err)
	}
	return msg, nil
}

// DeleteChat removes the chat with its messages and drops its memory.
func (s *ChatService) DeleteChat(ctx context.Context, ownerID, chatID string) error {
	if ownerID == "" {
		return chatservice.NewUnauthorizedError("delete_chat")
	}
	if err := s.chatRepo.Delete(ctx, chatID, ownerID); err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return chatservice.NewNotFoundError("delete_chat", "Chat", ownerID, chatID)
		}
		return chatservice.NewPersistenceError("delete_chat", "could not delete chat", err)
	}
	if s.forgetter != nil {
		if err := s.forgetter.Forget(ctx, ownerID, chatID); err != nil {
			s.logger.Warn("failed to drop chat memory", "chat_id", chatID, "error", err)
		}
	}
	s.logger.Info("chat deleted", "chat_id", chatID, "user_id", ownerID)
	return nil
}

// EditMessage rewrites a user message and archives everything after it, so
// the next turn regenerates from the edited prompt. Unchanged content is a
// no-op.
func (s *ChatService) EditMessage(ctx context.Context, ownerID, messageID, content string) (*domain.Message, error) {
	if ownerID == "" {
		return nil, chatservice.NewUnauthorizedError("edit_message")
	}
	if strings.TrimSpace(content) == "" {
		return nil, chatservice.NewValidationError("edit_message", "content is required")
	}

	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, message.ErrMessageNotFound) {
			return nil, chatservice.NewNotFoundError("edit_message", "Message", ownerID, "")
		}
		return nil, chatservice.NewPersistenceError("edit_message", "could not load message", err)
	}

	owner, err := s.chatRepo.FindByID(ctx, msg.ChatID)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return nil, chatservice.NewNotFoundError("edit_message", "Chat", ownerID, msg.ChatID)
		}
		return nil, chatservice.NewPersistenceError("edit_message", "could not load chat", err)
	}
	if owner.OwnerID != ownerID {
		return nil, chatservice.NewForbiddenError("edit_message", ownerID, msg.ChatID)
	}
	if !msg.Editable() {
		return nil, chatservice.NewValidationError("edit_message", "only user messages without attachments can be edited")
	}
	if msg.Content == content && !msg.Archived {
		return msg, nil
	}

	release, err := s.lock(ctx, "edit_message", msg.ChatID)
	if err != nil {
		return nil, err
	}
	defer release()

	editedAt := s.clock.Now()
	if err := s.messageRepo.UpdateContent(ctx, msg.ID, content, editedAt); err != nil {
		return nil, chatservice.NewPersistenceError("edit_message", "could not update message", err)
	}
	archived, err := s.messageRepo.ArchiveAfter(ctx, msg.ChatID, msg.CreatedAt)
	if err != nil {
		return nil, chatservice.NewPersistenceError("edit_message", "could not archive later messages", err)
	}
	if err := s.chatRepo.TouchUpdatedAt(ctx, msg.ChatID, editedAt); err != nil {
		s.logger.Warn("failed to bump chat timestamp", "chat_id", msg.ChatID, "error", err)
	}
	s.logger.Info("message edited", "chat_id", msg.ChatID, "message_id", msg.ID, "archived", archived)

	msg.Content = content
	msg.Archived = false
	msg.EditedAt = &editedAt
	return msg, nil
}

// RunTurn starts a streamed turn. See chatservice.StreamingService.RunTurn.
func (s *ChatService) RunTurn(ctx context.Context, req chatservice.TurnRequest) (*chatservice.Turn, error) {
	return s.streamService.RunTurn(ctx, req)
}

// RequireOwned returns NOT_FOUND unless the chat exists and belongs to ownerID.
func (s *ChatService) RequireOwned(ctx context.Context, operation, ownerID, chatID string) error {
	if ownerID == "" {
		return chatservice.NewUnauthorizedError(operation)
	}
	if _, err := s.chatRepo.FindOwned(ctx, chatID, ownerID); err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return chatservice.NewNotFoundError(operation, "Chat", ownerID, chatID)
		}
		return chatservice.NewPersistenceError(operation, "could not load chat", err)
	}
	return nil
}

func (s *ChatService) lock(ctx context.Context, operation, chatID string) (func(), error) {
	return s.streamService.AcquireChat(ctx, operation, chatID)
}
