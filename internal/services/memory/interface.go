// File: internal/services/memory/interface.go
package memory

import "context"

// Entry is one role/content pair written to long-term memory.
type Entry struct {
	Role    string
	Content string
}

// Record is a stored memory vector and its metadata.
type Record struct {
	ID      string
	Values  []float32
	UserID  string
	ChatID  string
	Role    string
	Content string
}

// Match is a retrieved memory.
type Match struct {
	ID      string
	Role    string
	Content string
	Score   float32
}

// Embedder turns text into a vector.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores memory vectors partitioned by user.
type VectorIndex interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, userID string, vector []float32, topK int) ([]Match, error)
	DeleteChat(ctx context.Context, userID, chatID string) error
}

// Logger interface for memory operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
