// File: internal/services/chat/types.go
package chat

import (
	"context"
	"time"

	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/services/ai"
	"github.com/iyunix/go-chat/internal/services/memory"
)

// DefaultInstruction is the fixed system instruction used without memory.
const DefaultInstruction = memory.DefaultInstruction

// Logger defines the logging interface used across chat services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// InputMessage is a prior or new message supplied by the client.
type InputMessage struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// TurnRequest describes one chat turn. Messages is the full visible history
// ending with the newest user message. With Regenerate set the newest user
// message is already persisted (edit-fork) and is not appended again.
type TurnRequest struct {
	OwnerID     string
	ChatID      string
	Messages    []InputMessage
	Attachments []domain.Attachment
	Regenerate  bool
}

// AIProvider opens streamed completions.
type AIProvider = ai.CompletionProvider

// MemoryProvider is the optional long-term memory collaborator.
type MemoryProvider interface {
	Retrieve(ctx context.Context, userID, text string) (string, error)
	Append(ctx context.Context, userID, chatID string, entries []memory.Entry) error
}

// TurnLocker serializes turns per chat.
type TurnLocker interface {
	Acquire(ctx context.Context, chatID string) (release func(), err error)
}

// Clock hands out strictly increasing UTC timestamps so message order by
// createdAt matches the order in which they were produced.
type Clock interface {
	Now() time.Time
}
