// File: internal/services/ai/interface.go
package ai

import "context"

// ChatMessage is one entry of the model-facing conversation.
type ChatMessage struct {
	Role    string
	Content string
}

type StreamRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Temperature float32
}

// Stream yields text deltas in arrival order. Recv returns io.EOF once the
// model has finished.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// EmbeddingProvider handles text embeddings
type EmbeddingProvider interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// CompletionProvider opens streamed chat completions
type CompletionProvider interface {
	OpenStream(ctx context.Context, req StreamRequest) (Stream, error)
}

// AIProvider combines embedding and completion capabilities
type AIProvider interface {
	EmbeddingProvider
	CompletionProvider
}
