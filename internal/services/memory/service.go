// File: internal/services/memory/service.go
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service is the long-term, per-user memory used to augment the system
// instruction of each turn. It is best-effort: callers fall back to the base
// instruction on any error.
type Service struct {
	embedder Embedder
	index    VectorIndex
	retry    *RetryService
	config   *Config
	logger   Logger
}

func NewService(embedder Embedder, index VectorIndex, config *Config, logger Logger) *Service {
	return &Service{
		embedder: embedder,
		index:    index,
		retry:    NewRetryService(config, logger),
		config:   config,
		logger:   logger,
	}
}

// Instruction returns the base system instruction.
func (s *Service) Instruction() string {
	if s.config.Instruction == "" {
		return DefaultInstruction
	}
	return s.config.Instruction
}

// Retrieve returns the system instruction for a turn: the base instruction,
// followed by the user's most relevant memories when there are any.
func (s *Service) Retrieve(ctx context.Context, userID, text string) (string, error) {
	base := s.Instruction()
	if strings.TrimSpace(text) == "" {
		return base, nil
	}

	var matches []Match
	err := s.retry.RetryWithTimeout(ctx, func(ctx context.Context) error {
		vec, err := s.embedder.CreateEmbedding(ctx, text)
		if err != nil {
			return err
		}
		matches, err = s.index.Query(ctx, userID, vec, s.config.TopK)
		return err
	})
	if err != nil {
		return base, err
	}
	return BuildInstruction(base, matches, s.config.MinScore), nil
}

// Append stores each non-empty entry of a finished turn.
func (s *Service) Append(ctx context.Context, userID, chatID string, entries []Entry) error {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		var vec []float32
		err := s.retry.RetryWithTimeout(ctx, func(ctx context.Context) error {
			var err error
			vec, err = s.embedder.CreateEmbedding(ctx, e.Content)
			return err
		})
		if err != nil {
			return err
		}
		records = append(records, Record{
			ID:      uuid.NewString(),
			Values:  vec,
			UserID:  userID,
			ChatID:  chatID,
			Role:    e.Role,
			Content: e.Content,
		})
	}
	if len(records) == 0 {
		return nil
	}
	return s.retry.RetryWithTimeout(ctx, func(ctx context.Context) error {
		return s.index.Upsert(ctx, records)
	})
}

// Forget removes everything remembered from one chat.
func (s *Service) Forget(ctx context.Context, userID, chatID string) error {
	return s.retry.RetryWithTimeout(ctx, func(ctx context.Context) error {
		return s.index.DeleteChat(ctx, userID, chatID)
	})
}

// BuildInstruction appends matches scoring at least minScore to base.
func BuildInstruction(base string, matches []Match, minScore float32) string {
	var sb strings.Builder
	n := 0
	for _, m := range matches {
		if m.Score < minScore || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if n == 0 {
			sb.WriteString(base)
			sb.WriteString("\n\nRelevant things this user said or was told in earlier conversations:\n")
		}
		n++
		fmt.Fprintf(&sb, "- (%s) %s\n", m.Role, strings.TrimSpace(m.Content))
	}
	if n == 0 {
		return base
	}
	return strings.TrimRight(sb.String(), "\n")
}
