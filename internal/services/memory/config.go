// File: internal/services/memory/config.go
package memory

import (
	"errors"
	"time"
)

// DefaultInstruction is the system instruction used when no memory context
// is available.
const DefaultInstruction = "You are a helpful, concise AI assistant. Prefer clear step-by-step guidance, avoid hallucinations, and ask clarifying questions when needed."

type Config struct {
	APIKey    string
	IndexHost string
	Namespace string

	TopK     int
	MinScore float32

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Instruction is the base system instruction that memory context is
	// appended to.
	Instruction string
}

func DefaultConfig() *Config {
	return &Config{
		TopK:        5,
		MinScore:    0.75,
		Timeout:     10 * time.Second,
		MaxRetries:  2,
		RetryDelay:  500 * time.Millisecond,
		Instruction: DefaultInstruction,
	}
}

func (c *Config) Validate() error {
	if c.IndexHost == "" {
		return errors.New("pinecone index host is required")
	}
	if c.APIKey == "" {
		return errors.New("pinecone API key is required")
	}
	if c.TopK <= 0 {
		return errors.New("top-k must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	return nil
}
