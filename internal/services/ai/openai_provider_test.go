package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chunk(content string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

func newProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.LLMKey = "test"
	cfg.LLMBaseURL = srv.URL + "/v1"
	cfg.Model = "m"
	return NewOpenAIProvider(cfg)
}

func TestOpenStreamRelaysDeltasInOrder(t *testing.T) {
	var gotBody map[string]any
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Hel", "", "lo, ", "world"} {
			fmt.Fprintf(w, "data: %s\n\n", chunk(d))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := p.OpenStream(context.Background(), StreamRequest{
		System:   "be brief",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	var count int
	for {
		d, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		count++
		sb.WriteString(d)
	}
	if sb.String() != "Hello, world" {
		t.Fatalf("text = %q", sb.String())
	}
	if count != 3 {
		t.Fatalf("deltas = %d, want 3 (empty deltas skipped)", count)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages sent = %d, want system + user", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Fatalf("system message = %v", first)
	}
}

func TestOpenStreamClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		forbidden bool
	}{
		{"forbidden", http.StatusForbidden, `{"error":{"message":"no access","type":"invalid_request_error"}}`, true},
		{"payment required", http.StatusPaymentRequired, `{"error":{"message":"pay up","type":"billing"}}`, true},
		{"quota on 429", http.StatusTooManyRequests, `{"error":{"message":"quota","type":"insufficient_quota"}}`, true},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, false},
		{"unparseable body", http.StatusUnauthorized, `nope`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := p.OpenStream(context.Background(), StreamRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsForbidden(err) != tt.forbidden {
				t.Fatalf("IsForbidden = %v, want %v (err: %v)", IsForbidden(err), tt.forbidden, err)
			}
		})
	}
}

func TestCreateEmbedding(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"e"}`)
	})
	vec, err := p.CreateEmbedding(context.Background(), "hello")
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len = %d", len(vec))
	}
}
