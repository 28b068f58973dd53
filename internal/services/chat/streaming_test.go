package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iyunix/go-chat/internal/database"
	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/metrics"
	"github.com/iyunix/go-chat/internal/relay"
	chatrepo "github.com/iyunix/go-chat/internal/repository/chat"
	"github.com/iyunix/go-chat/internal/repository/message"
	"github.com/iyunix/go-chat/internal/services/ai"
	"github.com/iyunix/go-chat/internal/services/memory"
	"github.com/iyunix/go-chat/internal/turnlock"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

// scriptedStream yields deltas one by one. When gate is set it waits for a
// signal before each delta after the first, so tests can act mid-stream.
type scriptedStream struct {
	ctx    context.Context
	deltas []string
	gate   chan struct{}
	failAt int
	i      int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.i > 0 && s.gate != nil {
		select {
		case <-s.gate:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.failAt > 0 && s.i == s.failAt {
		return "", errors.New("connection reset")
	}
	if s.i >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.i]
	s.i++
	return d, nil
}

func (s *scriptedStream) Close() error { return nil }

type fakeAI struct {
	mu      sync.Mutex
	deltas  []string
	gate    chan struct{}
	failAt  int
	openErr error
	reqs    []ai.StreamRequest
}

func (f *fakeAI) OpenStream(ctx context.Context, req ai.StreamRequest) (ai.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &scriptedStream{ctx: ctx, deltas: f.deltas, gate: f.gate, failAt: f.failAt}, nil
}

func (f *fakeAI) lastRequest() ai.StreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeMemory struct {
	mu       sync.Mutex
	system   string
	err      error
	queries  []string
	appended [][]memory.Entry
}

func (m *fakeMemory) Retrieve(ctx context.Context, userID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	return m.system, m.err
}

func (m *fakeMemory) Append(ctx context.Context, userID, chatID string, entries []memory.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, entries)
	return nil
}

type harness struct {
	svc      *StreamingService
	ai       *fakeAI
	chats    chatrepo.ChatRepository
	messages message.MessageRepository
	config   *Config
}

func newHarness(t *testing.T, provider *fakeAI, mem MemoryProvider) *harness {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	cfg := DefaultConfig()
	cfg.StreamTimeout = 0
	h := &harness{
		ai:       provider,
		chats:    chatrepo.NewChatRepository(db),
		messages: message.NewMessageRepository(db),
		config:   cfg,
	}
	h.svc = NewStreamingService(cfg, h.chats, h.messages, provider, mem, turnlock.NewMemory(), NewMonotonicClock(), nopLogger{})
	return h
}

func drain(t *testing.T, turn *Turn) (string, []relay.Event) {
	t.Helper()
	var sb strings.Builder
	var events []relay.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-turn.Events():
			if !ok {
				return sb.String(), events
			}
			events = append(events, ev)
			if ev.Type == relay.EventTextDelta {
				sb.WriteString(ev.Text)
			}
		case <-timeout:
			t.Fatal("timed out draining turn events")
		}
	}
}

func userMsgs(contents ...string) []InputMessage {
	out := make([]InputMessage, 0, len(contents))
	for _, c := range contents {
		out = append(out, InputMessage{Role: domain.RoleUser, Content: c})
	}
	return out
}

func (h *harness) ownerChats(t *testing.T, owner string) []domain.Chat {
	t.Helper()
	chats, err := h.chats.FindByOwnerID(context.Background(), owner)
	if err != nil {
		t.Fatalf("FindByOwnerID: %v", err)
	}
	return chats
}

func (h *harness) visible(t *testing.T, chatID string) []domain.Message {
	t.Helper()
	msgs, err := h.messages.FindVisibleByChatID(context.Background(), chatID)
	if err != nil {
		t.Fatalf("FindVisibleByChatID: %v", err)
	}
	return msgs
}

func TestFirstTurnCreatesChatAndPersistsReply(t *testing.T) {
	h := newHarness(t, &fakeAI{deltas: []string{"Hel", "lo, ", "world"}}, nil)
	ctx := context.Background()

	turn, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("what is go? a language")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !turn.Created || turn.ChatID == "" || turn.UserMessageID == "" {
		t.Fatalf("turn = %+v", turn)
	}

	text, events := drain(t, turn)
	turn.Wait()

	if text != "Hello, world" {
		t.Fatalf("relayed text = %q", text)
	}
	if last := events[len(events)-1]; last.Type != relay.EventFinish {
		t.Fatalf("last event = %+v, want finish", last)
	}
	if turn.Outcome() != OutcomeCompleted {
		t.Fatalf("outcome = %q", turn.Outcome())
	}

	chats := h.ownerChats(t, "alice")
	if len(chats) != 1 {
		t.Fatalf("chats = %d, want exactly 1", len(chats))
	}
	if chats[0].Title != "What is go" {
		t.Fatalf("title = %q", chats[0].Title)
	}

	msgs := h.visible(t, turn.ChatID)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant || msgs[1].Content != "Hello, world" {
		t.Fatalf("messages = %+v", msgs)
	}
	if chats[0].UpdatedAt.Before(msgs[1].CreatedAt) {
		t.Fatalf("updatedAt %v older than newest message %v", chats[0].UpdatedAt, msgs[1].CreatedAt)
	}
	if got := h.ai.lastRequest().System; got != DefaultInstruction {
		t.Fatalf("system = %q", got)
	}
}

func TestExistingChatAppendsWithoutCreating(t *testing.T) {
	h := newHarness(t, &fakeAI{deltas: []string{"ok"}}, nil)
	ctx := context.Background()

	first, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("one")})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	drain(t, first)
	first.Wait()

	history := []InputMessage{
		{Role: domain.RoleUser, Content: "one"},
		{Role: domain.RoleAssistant, Content: "ok"},
		{Role: domain.RoleUser, Content: "two"},
	}
	second, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", ChatID: first.ChatID, Messages: history})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.Created {
		t.Fatal("existing chat must not be re-created")
	}
	drain(t, second)
	second.Wait()

	if n := len(h.ownerChats(t, "alice")); n != 1 {
		t.Fatalf("chats = %d, want 1", n)
	}
	msgs := h.visible(t, first.ChatID)
	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	if strings.Join(contents, ",") != "one,ok,two,ok" {
		t.Fatalf("messages = %v", contents)
	}
	if got := len(h.ai.lastRequest().Messages); got != 3 {
		t.Fatalf("prompt messages = %d, want 3", got)
	}
}

func TestForeignOrMissingChatIsNotFound(t *testing.T) {
	h := newHarness(t, &fakeAI{deltas: []string{"x"}}, nil)
	ctx := context.Background()

	turn, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("mine")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	drain(t, turn)
	turn.Wait()

	for _, req := range []TurnRequest{
		{OwnerID: "mallory", ChatID: turn.ChatID, Messages: userMsgs("steal")},
		{OwnerID: "alice", ChatID: uuid.NewString(), Messages: userMsgs("ghost")},
	} {
		_, err := h.svc.RunTurn(ctx, req)
		if TypeOf(err) != ErrTypeNotFound {
			t.Fatalf("want NOT_FOUND, got %v", err)
		}
	}
	if n := len(h.visible(t, turn.ChatID)); n != 2 {
		t.Fatalf("rejected turns must not write: %d messages", n)
	}
}

func TestValidation(t *testing.T) {
	h := newHarness(t, &fakeAI{}, nil)
	ctx := context.Background()
	atts := []domain.Attachment{{Name: "1"}, {Name: "2"}, {Name: "3"}}

	cases := []struct {
		name string
		req  TurnRequest
		want ErrorType
	}{
		{"no owner", TurnRequest{Messages: userMsgs("x")}, ErrTypeUnauthorized},
		{"no messages", TurnRequest{OwnerID: "a"}, ErrTypeValidation},
		{"no user message", TurnRequest{OwnerID: "a", Messages: []InputMessage{{Role: domain.RoleAssistant, Content: "x"}}}, ErrTypeValidation},
		{"unknown role", TurnRequest{OwnerID: "a", Messages: []InputMessage{{Role: "robot", Content: "x"}}}, ErrTypeValidation},
		{"too many attachments", TurnRequest{OwnerID: "a", Messages: userMsgs("x"), Attachments: atts}, ErrTypeValidation},
		{"regenerate new chat", TurnRequest{OwnerID: "a", Messages: userMsgs("x"), Regenerate: true}, ErrTypeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.svc.RunTurn(ctx, tc.req); TypeOf(err) != tc.want {
				t.Fatalf("want %s, got %v", tc.want, err)
			}
		})
	}
}

func TestProviderErrorsBeforeStreaming(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorType
		msg  string
	}{
		{"forbidden", &ai.AIError{Type: ai.ErrTypeForbidden, Code: 403}, ErrTypeProviderForbidden, MsgProviderForbidden},
		{"other", errors.New("dial tcp: refused"), ErrTypeProviderFailure, MsgProviderFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, &fakeAI{openErr: tc.err}, nil)
			_, err := h.svc.RunTurn(context.Background(), TurnRequest{OwnerID: "alice", Messages: userMsgs("hi")})
			var chatErr *ChatError
			if !errors.As(err, &chatErr) || chatErr.Type != tc.want {
				t.Fatalf("want %s, got %v", tc.want, err)
			}
			if chatErr.UserMessage() != tc.msg {
				t.Fatalf("user message = %q", chatErr.UserMessage())
			}

			chats := h.ownerChats(t, "alice")
			if len(chats) != 1 {
				t.Fatalf("chats = %d", len(chats))
			}
			for _, m := range h.visible(t, chats[0].ID) {
				if m.Role == domain.RoleAssistant {
					t.Fatal("no assistant message may be persisted when the model call fails")
				}
			}
		})
	}
}

func TestCancelAfterFirstDeltaPersistsNothing(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &fakeAI{deltas: []string{"Hel", "lo, ", "world"}, gate: gate}, nil)

	turn, err := h.svc.RunTurn(context.Background(), TurnRequest{OwnerID: "alice", Messages: userMsgs("hi")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	first := <-turn.Events()
	if first.Text != "Hel" {
		t.Fatalf("first delta = %+v", first)
	}
	turn.Cancel()
	text, _ := drain(t, turn)
	turn.Wait()

	if text != "" {
		t.Fatalf("deltas delivered after cancel: %q", text)
	}
	if turn.Outcome() != OutcomeCancelled {
		t.Fatalf("outcome = %q", turn.Outcome())
	}
	for _, m := range h.visible(t, turn.ChatID) {
		if m.Role == domain.RoleAssistant {
			t.Fatalf("cancelled turn persisted an assistant message: %+v", m)
		}
	}
}

func TestCancelWithPersistInterrupted(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &fakeAI{deltas: []string{"Hel", "lo"}, gate: gate}, nil)
	h.config.PersistInterrupted = true

	turn, err := h.svc.RunTurn(context.Background(), TurnRequest{OwnerID: "alice", Messages: userMsgs("hi")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	<-turn.Events()
	turn.Cancel()
	drain(t, turn)
	turn.Wait()

	msgs := h.visible(t, turn.ChatID)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if !msgs[1].Interrupted || msgs[1].Content != "Hel" {
		t.Fatalf("interrupted message = %+v", msgs[1])
	}
}

func TestMidStreamFailureEndsEarly(t *testing.T) {
	h := newHarness(t, &fakeAI{deltas: []string{"Hel", "lo"}, failAt: 1}, nil)
	turn, err := h.svc.RunTurn(context.Background(), TurnRequest{OwnerID: "alice", Messages: userMsgs("hi")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	text, events := drain(t, turn)
	turn.Wait()

	if text != "Hel" {
		t.Fatalf("text = %q", text)
	}
	if last := events[len(events)-1]; last.Type != relay.EventError || last.Error != MsgProviderFailure {
		t.Fatalf("last event = %+v", last)
	}
	for _, m := range h.visible(t, turn.ChatID) {
		if m.Role == domain.RoleAssistant {
			t.Fatal("failed stream must not persist an assistant message")
		}
	}
}

func TestConcurrentTurnOnSameChatConflicts(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeAI{deltas: []string{"a", "b"}, gate: gate}
	h := newHarness(t, provider, nil)
	ctx := context.Background()

	turn, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("hi")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	<-turn.Events()

	_, err = h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", ChatID: turn.ChatID, Messages: userMsgs("hi", "again")})
	if TypeOf(err) != ErrTypeConflict {
		t.Fatalf("want CONFLICT, got %v", err)
	}

	close(gate)
	drain(t, turn)
	turn.Wait()

	provider.mu.Lock()
	provider.gate = nil
	provider.mu.Unlock()
	next, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", ChatID: turn.ChatID, Messages: userMsgs("hi", "again")})
	if err != nil {
		t.Fatalf("turn after release: %v", err)
	}
	drain(t, next)
	next.Wait()
}

func TestRegenerateDoesNotAppendUserMessage(t *testing.T) {
	h := newHarness(t, &fakeAI{deltas: []string{"v1"}}, nil)
	ctx := context.Background()

	first, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("q")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	drain(t, first)
	first.Wait()

	regen, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", ChatID: first.ChatID, Messages: userMsgs("q"), Regenerate: true})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regen.UserMessageID != "" {
		t.Fatal("regenerate must not persist a user message")
	}
	drain(t, regen)
	regen.Wait()

	var users int
	for _, m := range h.visible(t, first.ChatID) {
		if m.Role == domain.RoleUser {
			users++
		}
	}
	if users != 1 {
		t.Fatalf("user messages = %d, want 1", users)
	}
}

func TestMemoryAugmentation(t *testing.T) {
	mem := &fakeMemory{system: "remembered context"}
	h := newHarness(t, &fakeAI{deltas: []string{"reply"}}, mem)
	ctx := context.Background()

	turn, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("first question")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	drain(t, turn)
	turn.Wait()

	if got := h.ai.lastRequest().System; got != "remembered context" {
		t.Fatalf("system = %q", got)
	}
	if mem.queries[0] != "first question" {
		t.Fatalf("first-turn memory query = %q", mem.queries[0])
	}
	if len(mem.appended) != 1 || mem.appended[0][1].Content != "reply" {
		t.Fatalf("appended = %+v", mem.appended)
	}

	mem.err = errors.New("index down")
	next, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", ChatID: turn.ChatID, Messages: userMsgs("first question", "second")})
	if err != nil {
		t.Fatalf("RunTurn with memory down: %v", err)
	}
	drain(t, next)
	next.Wait()
	if got := h.ai.lastRequest().System; got != DefaultInstruction {
		t.Fatalf("fallback system = %q", got)
	}
}

// slowMemory blocks every Append until unblock is closed.
type slowMemory struct {
	unblock  chan struct{}
	appended chan struct{}
}

func (m *slowMemory) Retrieve(ctx context.Context, userID, text string) (string, error) {
	return "", nil
}

func (m *slowMemory) Append(ctx context.Context, userID, chatID string, entries []memory.Entry) error {
	select {
	case m.appended <- struct{}{}:
	default:
	}
	<-m.unblock
	return nil
}

func TestNextTurnDoesNotWaitForMemoryWrite(t *testing.T) {
	mem := &slowMemory{unblock: make(chan struct{}), appended: make(chan struct{}, 1)}
	var once sync.Once
	unblock := func() { once.Do(func() { close(mem.unblock) }) }
	t.Cleanup(unblock)

	h := newHarness(t, &fakeAI{deltas: []string{"a1"}}, mem)
	ctx := context.Background()

	first, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", Messages: userMsgs("q1")})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	drain(t, first)

	history := []InputMessage{
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
	}
	second, err := h.svc.RunTurn(ctx, TurnRequest{OwnerID: "alice", ChatID: first.ChatID, Messages: history})
	if err != nil {
		t.Fatalf("turn right after the stream ended: %v", err)
	}
	drain(t, second)

	select {
	case <-mem.appended:
	case <-time.After(5 * time.Second):
		t.Fatal("memory append never started")
	}
	unblock()
	first.Wait()
	second.Wait()

	var contents []string
	for _, m := range h.visible(t, first.ChatID) {
		contents = append(contents, m.Content)
	}
	if strings.Join(contents, ",") != "q1,a1,q2,a1" {
		t.Fatalf("messages = %v", contents)
	}
}

// failingReplies refuses to store assistant messages.
type failingReplies struct {
	message.MessageRepository
}

func (r failingReplies) Create(ctx context.Context, msg *domain.Message) error {
	if msg.Role == domain.RoleAssistant {
		return errors.New("disk full")
	}
	return r.MessageRepository.Create(ctx, msg)
}

func TestReplyPersistenceFailureKeepsStreamClean(t *testing.T) {
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	messages := message.NewMessageRepository(db)
	svc := NewStreamingService(DefaultConfig(), chatrepo.NewChatRepository(db), failingReplies{messages},
		&fakeAI{deltas: []string{"Hel", "lo"}}, nil, turnlock.NewMemory(), NewMonotonicClock(), nopLogger{})

	before := testutil.ToFloat64(metrics.Global().PersistenceFailures)

	turn, err := svc.RunTurn(context.Background(), TurnRequest{OwnerID: "alice", Messages: userMsgs("hi")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	text, events := drain(t, turn)
	turn.Wait()

	if text != "Hello" {
		t.Fatalf("text = %q", text)
	}
	for _, ev := range events {
		if ev.Type == relay.EventError {
			t.Fatalf("persistence failure leaked to the client: %+v", ev)
		}
	}
	if last := events[len(events)-1]; last.Type != relay.EventFinish {
		t.Fatalf("last event = %+v, want finish", last)
	}
	if turn.Outcome() != OutcomeCompleted {
		t.Fatalf("outcome = %q", turn.Outcome())
	}
	if got := testutil.ToFloat64(metrics.Global().PersistenceFailures) - before; got != 1 {
		t.Fatalf("persistence failures += %v, want 1", got)
	}

	msgs, err := messages.FindVisibleByChatID(context.Background(), turn.ChatID)
	if err != nil {
		t.Fatalf("FindVisibleByChatID: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser {
		t.Fatalf("messages = %+v", msgs)
	}
}
