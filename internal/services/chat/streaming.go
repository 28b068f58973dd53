// File: internal/services/chat/streaming.go
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/metrics"
	"github.com/iyunix/go-chat/internal/relay"
	"github.com/iyunix/go-chat/internal/repository/chat"
	"github.com/iyunix/go-chat/internal/repository/message"
	"github.com/iyunix/go-chat/internal/services/ai"
	"github.com/iyunix/go-chat/internal/services/memory"
	"github.com/iyunix/go-chat/internal/turnlock"
)

// StreamingService orchestrates a chat turn: chat creation or lookup, user
// message persistence, prompt assembly, the streamed model call and the
// persistence of the finished reply.
type StreamingService struct {
	config      *Config
	chatRepo    chat.ChatRepository
	messageRepo message.MessageRepository
	aiService   AIProvider
	memory      MemoryProvider
	locker      TurnLocker
	clock       Clock
	metrics     *metrics.Metrics
	logger      Logger

	// settling holds chats whose stream has closed while the reply is still
	// being written. The channel closes when the turn lock is released.
	settlingMu sync.Mutex
	settling   map[string]chan struct{}
}

// NewStreamingService creates the orchestrator. memory may be nil.
func NewStreamingService(
	config *Config,
	chatRepo chat.ChatRepository,
	messageRepo message.MessageRepository,
	aiService AIProvider,
	memory MemoryProvider,
	locker TurnLocker,
	clock Clock,
	logger Logger,
) *StreamingService {
	if locker == nil {
		locker = turnlock.NewMemory()
	}
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &StreamingService{
		config:      config,
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		aiService:   aiService,
		memory:      memory,
		locker:      locker,
		clock:       clock,
		metrics:     metrics.Global(),
		logger:      logger,
		settling:    make(map[string]chan struct{}),
	}
}

// Turn is the handle for one in-flight turn. Events yields deltas in order
// and is closed when the stream ends for any reason.
type Turn struct {
	ChatID        string
	Created       bool
	UserMessageID string

	events chan relay.Event
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome TurnOutcome
}

type TurnOutcome string

const (
	OutcomePending   TurnOutcome = ""
	OutcomeCompleted TurnOutcome = "completed"
	OutcomeCancelled TurnOutcome = "cancelled"
	OutcomeFailed    TurnOutcome = "failed"
)

func (t *Turn) Events() <-chan relay.Event { return t.events }

// Cancel stops the model stream. No further deltas are delivered.
func (t *Turn) Cancel() { t.cancel() }

// Wait blocks until the stream has ended and every background write for the
// turn has finished.
func (t *Turn) Wait() { <-t.done }

// Outcome reports how the turn ended; it is only final after Wait returns.
func (t *Turn) Outcome() TurnOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

func (t *Turn) setOutcome(o TurnOutcome) {
	t.mu.Lock()
	t.outcome = o
	t.mu.Unlock()
}

// RunTurn performs every step up to opening the model stream and returns as
// soon as the stream is open. Errors returned here happen before any delta.
func (s *StreamingService) RunTurn(ctx context.Context, req TurnRequest) (*Turn, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, NewUnauthorizedError("run_turn")
	}
	if err := s.validateTurn(req); err != nil {
		return nil, err
	}

	latest := LatestUserIndex(req.Messages)
	firstUser := ""
	if latest >= 0 {
		firstUser = req.Messages[latest].Content
	}

	turn := &Turn{ChatID: req.ChatID}
	var release func()

	if req.ChatID == "" {
		now := s.clock.Now()
		newChat := &domain.Chat{
			ID:         uuid.NewString(),
			Title:      SmartTitle(firstUser, s.config.TitleMaxLength),
			OwnerID:    req.OwnerID,
			Visibility: domain.VisibilityPrivate,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.chatRepo.Create(ctx, newChat); err != nil {
			return nil, NewPersistenceError("create_chat", "could not create chat", err)
		}
		turn.ChatID, turn.Created = newChat.ID, true

		var err error
		if release, err = s.acquire(ctx, newChat.ID); err != nil {
			return nil, err
		}
		if strings.TrimSpace(firstUser) != "" || len(req.Attachments) > 0 {
			id, err := s.appendUserMessage(ctx, newChat.ID, firstUser, req.Attachments, now)
			if err != nil {
				release()
				return nil, err
			}
			turn.UserMessageID = id
		}
		s.logger.Info("chat created", "chat_id", newChat.ID, "user_id", req.OwnerID)
	} else {
		if _, err := s.chatRepo.FindOwned(ctx, req.ChatID, req.OwnerID); err != nil {
			if errors.Is(err, chat.ErrChatNotFound) {
				return nil, NewNotFoundError("run_turn", "Chat", req.OwnerID, req.ChatID)
			}
			return nil, NewPersistenceError("run_turn", "could not load chat", err)
		}

		var err error
		if release, err = s.acquire(ctx, req.ChatID); err != nil {
			return nil, err
		}
		if !req.Regenerate {
			now := s.clock.Now()
			id, err := s.appendUserMessage(ctx, req.ChatID, firstUser, req.Attachments, now)
			if err != nil {
				release()
				return nil, err
			}
			if err := s.chatRepo.TouchUpdatedAt(ctx, req.ChatID, now); err != nil {
				s.logger.Warn("failed to bump chat timestamp", "chat_id", req.ChatID, "error", err)
			}
			turn.UserMessageID = id
		}
	}

	prompt := BuildPromptMessages(req.Messages, req.Attachments, s.config.MaxExtractedChars)
	system := s.systemInstruction(ctx, req.OwnerID, MemoryQuery(prompt, turn.Created, firstUser))

	streamCtx, cancel := context.WithCancel(ctx)
	if s.config.StreamTimeout > 0 {
		var timeoutCancel context.CancelFunc
		streamCtx, timeoutCancel = context.WithTimeout(streamCtx, s.config.StreamTimeout)
		parentCancel := cancel
		cancel = func() { timeoutCancel(); parentCancel() }
	}

	started := time.Now()
	stream, err := s.aiService.OpenStream(streamCtx, ai.StreamRequest{
		Model:       s.config.Model,
		System:      system,
		Messages:    prompt,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		cancel()
		release()
		chatErr := NewProviderError("open_stream", ai.IsForbidden(err), err)
		chatErr.ChatID, chatErr.UserID = turn.ChatID, req.OwnerID
		s.metrics.TurnsFailed.WithLabelValues(string(chatErr.Type)).Inc()
		s.logger.Error("model call failed", "chat_id", turn.ChatID, "error", err)
		return nil, chatErr
	}
	s.metrics.TurnsStarted.Inc()

	turn.events = make(chan relay.Event, s.config.EventBuffer)
	turn.cancel = cancel
	turn.done = make(chan struct{})

	var lastUser string
	if latest >= 0 {
		lastUser = req.Messages[latest].Content
	}
	go s.pump(streamCtx, turn, stream, req.OwnerID, lastUser, release, started)
	return turn, nil
}

func (s *StreamingService) validateTurn(req TurnRequest) error {
	if len(req.Messages) == 0 {
		return NewValidationError("run_turn", "messages are required")
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			return NewValidationError("run_turn", "unknown message role "+string(m.Role))
		}
	}
	if LatestUserIndex(req.Messages) < 0 {
		return NewValidationError("run_turn", "at least one user message is required")
	}
	if req.Regenerate && req.ChatID == "" {
		return NewValidationError("run_turn", "regenerate requires an existing chat")
	}
	if s.config.MaxAttachments > 0 && len(req.Attachments) > s.config.MaxAttachments {
		return NewValidationError("run_turn", "too many attachments")
	}
	return nil
}

func (s *StreamingService) acquire(ctx context.Context, chatID string) (func(), error) {
	return s.AcquireChat(ctx, "run_turn", chatID)
}

// AcquireChat takes the per-chat turn lock for operation. When the holder is
// a turn whose stream already ended and which is only saving its reply, it
// waits up to PersistTimeout for that write instead of failing at once.
func (s *StreamingService) AcquireChat(ctx context.Context, operation, chatID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, chatID)
	if errors.Is(err, turnlock.ErrLocked) {
		// The mark is cleared right after the lock is released, so a missing
		// mark still deserves one more attempt.
		settled := s.settlingChat(chatID)
		if settled != nil {
			wait := time.NewTimer(s.config.PersistTimeout)
			select {
			case <-settled:
			case <-wait.C:
			case <-ctx.Done():
			}
			wait.Stop()
		}
		release, err = s.locker.Acquire(ctx, chatID)
	}
	if err != nil {
		if errors.Is(err, turnlock.ErrLocked) {
			s.metrics.TurnsRejected.Inc()
			return nil, NewConflictError(operation, chatID, err)
		}
		return nil, NewPersistenceError(operation, "could not acquire turn lock", err)
	}
	return sync.OnceFunc(release), nil
}

func (s *StreamingService) settlingChat(chatID string) <-chan struct{} {
	s.settlingMu.Lock()
	defer s.settlingMu.Unlock()
	return s.settling[chatID]
}

// markSettling records that chatID's stream is closing; the returned func
// clears the mark and wakes waiters.
func (s *StreamingService) markSettling(chatID string) func() {
	ch := make(chan struct{})
	s.settlingMu.Lock()
	s.settling[chatID] = ch
	s.settlingMu.Unlock()
	return func() {
		s.settlingMu.Lock()
		if s.settling[chatID] == ch {
			delete(s.settling, chatID)
		}
		s.settlingMu.Unlock()
		close(ch)
	}
}

func (s *StreamingService) appendUserMessage(ctx context.Context, chatID, content string, attachments []domain.Attachment, at time.Time) (string, error) {
	msg := &domain.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Role:        domain.RoleUser,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   at,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return "", NewPersistenceError("append_user_message", "could not save message", err)
	}
	return msg.ID, nil
}

// systemInstruction asks memory for context and falls back to the fixed
// instruction when memory is disabled or fails.
func (s *StreamingService) systemInstruction(ctx context.Context, userID, query string) string {
	if s.memory == nil {
		return s.config.Instruction
	}
	memCtx := ctx
	if s.config.MemoryTimeout > 0 {
		var cancel context.CancelFunc
		memCtx, cancel = context.WithTimeout(ctx, s.config.MemoryTimeout)
		defer cancel()
	}
	system, err := s.memory.Retrieve(memCtx, userID, query)
	if err != nil || strings.TrimSpace(system) == "" {
		if err != nil {
			s.logger.Warn("memory retrieval failed, using default instruction", "user_id", userID, "error", err)
		}
		return s.config.Instruction
	}
	return system
}

// pump relays deltas to the turn's channel in arrival order, then persists
// the result after the stream is closed. The turn lock is released as soon
// as the reply is saved; the memory write runs after that.
func (s *StreamingService) pump(
	ctx context.Context,
	turn *Turn,
	stream ai.Stream,
	ownerID, userText string,
	release func(),
	started time.Time,
) {
	defer close(turn.done)
	defer release()
	defer turn.cancel()

	var reply strings.Builder
	outcome := OutcomeCompleted
	var streamErr error

loop:
	for {
		delta, err := stream.Recv()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case errors.Is(ctx.Err(), context.Canceled):
				outcome = OutcomeCancelled
			default:
				outcome, streamErr = OutcomeFailed, err
			}
			break loop
		}
		reply.WriteString(delta)
		select {
		case turn.events <- relay.Delta(delta):
			s.metrics.DeltasRelayed.Inc()
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				outcome = OutcomeCancelled
			} else {
				outcome, streamErr = OutcomeFailed, ctx.Err()
			}
			break loop
		}
	}
	_ = stream.Close()

	finishedAt := s.clock.Now()
	settled := sync.OnceFunc(s.markSettling(turn.ChatID))
	switch outcome {
	case OutcomeCompleted:
		s.trySend(ctx, turn, relay.Finish())
	case OutcomeFailed:
		s.trySend(ctx, turn, relay.Failure(MsgProviderFailure))
	}
	close(turn.events)
	turn.setOutcome(outcome)
	s.metrics.TurnDuration.Observe(time.Since(started).Seconds())

	switch outcome {
	case OutcomeCompleted:
		s.metrics.TurnsCompleted.Inc()
		s.logger.Info("stream completed", "chat_id", turn.ChatID, "response_length", reply.Len())
		s.saveAssistantMessage(turn.ChatID, reply.String(), false, finishedAt)
		release()
		settled()
		s.appendMemory(ownerID, turn.ChatID, userText, reply.String())
	case OutcomeCancelled:
		s.metrics.TurnsCancelled.Inc()
		s.logger.Info("stream cancelled", "chat_id", turn.ChatID, "partial_length", reply.Len())
		if s.config.PersistInterrupted && reply.Len() > 0 {
			s.saveAssistantMessage(turn.ChatID, reply.String(), true, finishedAt)
		}
	case OutcomeFailed:
		s.metrics.TurnsFailed.WithLabelValues(string(ErrTypeProviderFailure)).Inc()
		s.logger.Error("stream failed mid-way", "chat_id", turn.ChatID, "error", streamErr, "partial_length", reply.Len())
		if s.config.PersistInterrupted && reply.Len() > 0 {
			s.saveAssistantMessage(turn.ChatID, reply.String(), true, finishedAt)
		}
	}
	release()
	settled()
}

// trySend delivers a terminal event unless the consumer is gone. The buffer
// usually has room, so it rarely blocks.
func (s *StreamingService) trySend(ctx context.Context, turn *Turn, ev relay.Event) {
	select {
	case turn.events <- ev:
	default:
		select {
		case turn.events <- ev:
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
}

// saveAssistantMessage persists the reply and bumps the chat. Failures are
// logged and counted only; the user already has the text.
func (s *StreamingService) saveAssistantMessage(chatID, content string, interrupted bool, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PersistTimeout)
	defer cancel()

	msg := &domain.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Role:        domain.RoleAssistant,
		Content:     content,
		Interrupted: interrupted,
		CreatedAt:   at,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.metrics.PersistenceFailures.Inc()
		s.logger.Error("failed to save assistant message", "chat_id", chatID, "error", err)
		return
	}
	if err := s.chatRepo.TouchUpdatedAt(ctx, chatID, at); err != nil {
		s.metrics.PersistenceFailures.Inc()
		s.logger.Error("failed to bump chat timestamp", "chat_id", chatID, "error", err)
	}
}

func (s *StreamingService) appendMemory(ownerID, chatID, userText, reply string) {
	if s.memory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PersistTimeout+s.config.MemoryTimeout)
	defer cancel()
	err := s.memory.Append(ctx, ownerID, chatID, []memory.Entry{
		{Role: string(domain.RoleUser), Content: userText},
		{Role: string(domain.RoleAssistant), Content: reply},
	})
	if err != nil {
		s.logger.Warn("memory append failed", "chat_id", chatID, "error", err)
	}
}
