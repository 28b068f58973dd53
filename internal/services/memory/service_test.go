package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeEmbedder struct {
	fail  int
	calls int
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.fail {
		return nil, errors.New("embedding unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	records []Record
	matches []Match
}

func (f *fakeIndex) Upsert(ctx context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, userID string, vector []float32, topK int) ([]Match, error) {
	return f.matches, nil
}

func (f *fakeIndex) DeleteChat(ctx context.Context, userID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, r := range f.records {
		if r.UserID != userID || r.ChatID != chatID {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestRetrieveAppendsRelevantMemories(t *testing.T) {
	idx := &fakeIndex{matches: []Match{
		{Role: "user", Content: "I live in Lisbon", Score: 0.91},
		{Role: "assistant", Content: "noise", Score: 0.2},
	}}
	svc := NewService(&fakeEmbedder{}, idx, testConfig(), nopLogger{})

	got, err := svc.Retrieve(context.Background(), "u1", "what's the weather?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !strings.HasPrefix(got, DefaultInstruction) {
		t.Fatalf("instruction should start with the base text: %q", got)
	}
	if !strings.Contains(got, "I live in Lisbon") || strings.Contains(got, "noise") {
		t.Fatalf("unexpected memory block: %q", got)
	}
}

func TestRetrieveWithoutMatchesReturnsBase(t *testing.T) {
	svc := NewService(&fakeEmbedder{}, &fakeIndex{}, testConfig(), nopLogger{})
	got, err := svc.Retrieve(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got != DefaultInstruction {
		t.Fatalf("got %q", got)
	}
}

func TestRetrieveRetriesThenFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1

	ok := NewService(&fakeEmbedder{fail: 1}, &fakeIndex{}, cfg, nopLogger{})
	if _, err := ok.Retrieve(context.Background(), "u1", "hello"); err != nil {
		t.Fatalf("expected success after one retry, got %v", err)
	}

	broken := NewService(&fakeEmbedder{fail: 10}, &fakeIndex{}, cfg, nopLogger{})
	got, err := broken.Retrieve(context.Background(), "u1", "hello")
	if err == nil {
		t.Fatal("expected error after retries are exhausted")
	}
	var memErr *MemoryError
	if !errors.As(err, &memErr) || memErr.Type != "retry" {
		t.Fatalf("want retry MemoryError, got %v", err)
	}
	if got != DefaultInstruction {
		t.Fatalf("fallback instruction = %q", got)
	}
}

func TestAppendAndForget(t *testing.T) {
	idx := &fakeIndex{}
	svc := NewService(&fakeEmbedder{}, idx, testConfig(), nopLogger{})
	ctx := context.Background()

	err := svc.Append(ctx, "u1", "c1", []Entry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "  "},
		{Role: "assistant", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(idx.records) != 2 {
		t.Fatalf("records = %d, want 2 (blank entries skipped)", len(idx.records))
	}
	for _, r := range idx.records {
		if r.UserID != "u1" || r.ChatID != "c1" || r.ID == "" {
			t.Fatalf("bad record %+v", r)
		}
	}

	if err := svc.Forget(ctx, "u1", "c1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if len(idx.records) != 0 {
		t.Fatalf("records after forget = %d", len(idx.records))
	}
}

func TestMetadataHelpers(t *testing.T) {
	meta, err := recordMetadata(Record{UserID: "u1", ChatID: "c1", Role: "user", Content: "remember me"})
	if err != nil {
		t.Fatalf("recordMetadata: %v", err)
	}
	m := matchFromMetadata("v1", 0.5, meta)
	if m.Content != "remember me" || m.Role != "user" || m.ID != "v1" {
		t.Fatalf("match = %+v", m)
	}

	f, err := userFilter("u1", "c1")
	if err != nil {
		t.Fatalf("userFilter: %v", err)
	}
	eq := f.GetFields()[metaUserID].GetStructValue().GetFields()["$eq"].GetStringValue()
	if eq != "u1" {
		t.Fatalf("user filter = %v", f)
	}
	if _, ok := f.GetFields()[metaChatID]; !ok {
		t.Fatal("chat filter missing")
	}
	if _, err := userFilter("", ""); err == nil {
		t.Fatal("expected error for empty user")
	}
}
