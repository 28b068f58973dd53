// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

type Config struct {
	// Chat model
	LLMKey     string
	LLMBaseURL string
	Model      string

	// Embeddings (memory augmentation); fall back to the chat credentials
	EmbeddingKey     string
	EmbeddingBaseURL string
	EmbeddingModel   string

	Temperature float32
	TopP        float32

	// StreamTimeout bounds a whole streamed completion.
	StreamTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.LLMKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Model == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.StreamTimeout < 0 {
		return fmt.Errorf("stream timeout must not be negative")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Temperature:    0.7,
		TopP:           1,
		StreamTimeout:  5 * time.Minute,
	}
}
