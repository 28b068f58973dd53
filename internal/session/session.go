// File: internal/session/session.go
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/dtos"
	"github.com/iyunix/go-chat/internal/relay"
	chatservice "github.com/iyunix/go-chat/internal/services/chat"
)

const (
	// StoppedPlaceholder replaces an assistant message that was stopped
	// before any text arrived.
	StoppedPlaceholder = "⚠️ Generation stopped due to user action."

	streamErrorSuffix     = "\n[Error streaming response]"
	regenerateErrorSuffix = "\n⚠️ Error regenerating response"

	// MaxAttachments per outgoing message.
	MaxAttachments = 2
)

var (
	ErrBusy               = errors.New("session: a response is already streaming")
	ErrEmptyMessage       = errors.New("session: message is empty")
	ErrTooManyAttachments = errors.New("session: too many attachments")
	ErrNotEditable        = errors.New("session: message cannot be edited")
	ErrEditInProgress     = errors.New("session: another message is being edited")
	ErrNoEdit             = errors.New("session: no message is being edited")
)

// StreamError is a failure the server reported after streaming had begun.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return "stream ended early: " + e.Message }

type EditState int

const (
	Viewing EditState = iota
	Editing
	Saving
	Regenerating
)

func (s EditState) String() string {
	switch s {
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	case Regenerating:
		return "regenerating"
	default:
		return "viewing"
	}
}

// Message is the local view of one chat message. ID is empty until the
// server has assigned one.
type Message struct {
	ID          string
	Role        domain.Role
	Content     string
	Attachments []domain.Attachment
	Interrupted bool
	Failed      bool
}

// Editable reports whether the message may enter the Editing state.
func (m Message) Editable() bool {
	return m.ID != "" && m.Role == domain.RoleUser && len(m.Attachments) == 0
}

// Session holds the local state of one chat: the visible messages, at most
// one streaming response and at most one message being edited.
type Session struct {
	client *Client

	mu        sync.Mutex
	chatID    string
	messages  []Message
	streaming bool
	stopped   bool
	cancel    context.CancelFunc
	assistant int
	editing   int
	editState EditState
	onDelta   func(string)
}

// New returns a session for chatID, or for a chat that does not exist yet
// when chatID is empty.
func New(client *Client, chatID string) *Session {
	return &Session{client: client, chatID: chatID, assistant: -1, editing: -1}
}

// OnDelta registers fn to receive each applied delta. It runs on the
// goroutine that called Send or SaveEdit.
func (s *Session) OnDelta(fn func(string)) {
	s.mu.Lock()
	s.onDelta = fn
	s.mu.Unlock()
}

func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Messages returns a snapshot of the visible messages.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// EditState returns the message being edited, if any, and its state.
func (s *Session) EditState() (string, EditState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing < 0 {
		return "", s.editState
	}
	return s.messages[s.editing].ID, s.editState
}

// Load replaces the local view with the server's visible history.
func (s *Session) Load(ctx context.Context) error {
	chatID := s.ChatID()
	if chatID == "" {
		return nil
	}
	msgs, err := s.client.Messages(ctx, chatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming || s.editState != Viewing {
		return ErrBusy
	}
	s.messages = s.messages[:0]
	for _, m := range msgs {
		s.messages = append(s.messages, Message{
			ID:          m.ID,
			Role:        m.Role,
			Content:     m.Content,
			Attachments: m.Attachments,
			Interrupted: m.Interrupted,
		})
	}
	return nil
}

// Send appends the user message optimistically, adds an empty assistant
// message and streams the reply into it. It blocks until the stream ends or
// Stop is called; a stopped turn returns nil.
func (s *Session) Send(ctx context.Context, text string, attachments []domain.Attachment) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if len(attachments) > MaxAttachments {
		return ErrTooManyAttachments
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrBusy
	}
	s.messages = append(s.messages, Message{Role: domain.RoleUser, Content: text, Attachments: attachments})
	userIdx := len(s.messages) - 1
	req := dtos.TurnRequestDTO{
		ChatID:          s.chatID,
		Messages:        s.historyLocked(),
		LastAttachments: attachments,
	}
	s.beginStreamLocked()
	s.mu.Unlock()

	return s.stream(ctx, req, userIdx, streamErrorSuffix)
}

// Stop cancels the streaming response. Deltas already received but not yet
// applied are dropped. The assistant message keeps its partial text and is
// marked interrupted, or shows StoppedPlaceholder if nothing arrived.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streaming || s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.assistant >= 0 {
		m := &s.messages[s.assistant]
		m.Interrupted = true
		if m.Content == "" {
			m.Content = StoppedPlaceholder
			m.Failed = true
		}
	}
}

// BeginEdit moves a user message into the Editing state and returns its
// current text as the draft.
func (s *Session) BeginEdit(messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editState != Viewing {
		return "", ErrEditInProgress
	}
	if s.streaming {
		return "", ErrBusy
	}
	idx := s.indexLocked(messageID)
	if idx < 0 || !s.messages[idx].Editable() {
		return "", ErrNotEditable
	}
	s.editing = idx
	s.editState = Editing
	return s.messages[idx].Content, nil
}

func (s *Session) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editState == Editing {
		s.editing = -1
		s.editState = Viewing
	}
}

// SaveEdit persists the edited text, cuts the local history after the edited
// message and regenerates the reply. Unchanged or empty text just leaves
// the Editing state.
func (s *Session) SaveEdit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.editState != Editing {
		s.mu.Unlock()
		return ErrNoEdit
	}
	idx := s.editing
	if text == "" || text == s.messages[idx].Content {
		s.editing = -1
		s.editState = Viewing
		s.mu.Unlock()
		return nil
	}
	s.editState = Saving
	messageID := s.messages[idx].ID
	s.mu.Unlock()

	if err := s.client.EditMessage(ctx, messageID, text); err != nil {
		s.mu.Lock()
		s.editState = Editing
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.messages = s.messages[:idx+1]
	s.messages[idx].Content = text
	req := dtos.TurnRequestDTO{
		ChatID:     s.chatID,
		Messages:   s.historyLocked(),
		Regenerate: true,
	}
	s.editState = Regenerating
	s.beginStreamLocked()
	s.mu.Unlock()

	err := s.stream(ctx, req, -1, regenerateErrorSuffix)

	s.mu.Lock()
	s.editing = -1
	s.editState = Viewing
	s.mu.Unlock()
	return err
}

func (s *Session) beginStreamLocked() {
	s.messages = append(s.messages, Message{Role: domain.RoleAssistant})
	s.assistant = len(s.messages) - 1
	s.streaming = true
	s.stopped = false
}

func (s *Session) stream(ctx context.Context, req dtos.TurnRequestDTO, userIdx int, errSuffix string) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.streaming = false
		s.cancel = nil
		s.assistant = -1
		s.mu.Unlock()
	}()

	ts, err := s.client.StartTurn(ctx, req)
	if err != nil {
		if s.wasStopped() {
			return nil
		}
		s.fail(errSuffix)
		return err
	}
	defer ts.Close()
	s.adopt(ts.ChatID, ts.MessageID, userIdx)

	for {
		ev, err := ts.Next()
		if s.wasStopped() {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			s.fail(errSuffix)
			return err
		}
		switch ev.Type {
		case relay.EventTextDelta:
			s.apply(ev.Text)
		case relay.EventError:
			s.fail(errSuffix)
			return &StreamError{Message: ev.Error}
		}
	}
}

func (s *Session) apply(delta string) {
	s.mu.Lock()
	if s.stopped || s.assistant < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[s.assistant].Content += delta
	fn := s.onDelta
	s.mu.Unlock()
	if fn != nil {
		fn(delta)
	}
}

func (s *Session) fail(suffix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.assistant < 0 {
		return
	}
	m := &s.messages[s.assistant]
	m.Content += suffix
	m.Failed = true
}

// adopt takes the chat id of a chat created by this turn and the id of the
// user message the server persisted for it.
func (s *Session) adopt(chatID, messageID string, userIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatID == "" && chatID != "" {
		s.chatID = chatID
	}
	if userIdx >= 0 && userIdx < len(s.messages) && messageID != "" {
		s.messages[userIdx].ID = messageID
	}
}

func (s *Session) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Session) historyLocked() []chatservice.InputMessage {
	out := make([]chatservice.InputMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Role == domain.RoleAssistant && m.Failed {
			continue
		}
		out = append(out, chatservice.InputMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (s *Session) indexLocked(messageID string) int {
	if messageID == "" {
		return -1
	}
	for i, m := range s.messages {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}
