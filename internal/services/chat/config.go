// File: internal/services/chat/config.go
package chat

import (
	"fmt"
	"time"
)

type Config struct {
	// Model configuration
	Model       string
	Temperature float32

	// Instruction is used as the system prompt when memory is disabled or
	// unavailable.
	Instruction string

	// Timeouts
	StreamTimeout  time.Duration // whole streamed completion
	MemoryTimeout  time.Duration // memory lookup before the model call
	PersistTimeout time.Duration // background writes after the stream closes

	// PersistInterrupted stores partial output of cancelled turns with
	// Interrupted set. Off by default: a cancelled turn persists nothing.
	PersistInterrupted bool

	MaxAttachments    int
	TitleMaxLength    int
	MaxExtractedChars int
	EventBuffer       int
}

func (c *Config) Validate() error {
	if c.MaxAttachments < 0 {
		return fmt.Errorf("max_attachments cannot be negative")
	}
	if c.TitleMaxLength <= 0 {
		return fmt.Errorf("title_max_length must be positive")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("persist_timeout must be positive")
	}
	if c.StreamTimeout < 0 || c.MemoryTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("event_buffer cannot be negative")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Temperature:       0.7,
		Instruction:       DefaultInstruction,
		StreamTimeout:     5 * time.Minute,
		MemoryTimeout:     10 * time.Second,
		PersistTimeout:    5 * time.Second,
		MaxAttachments:    2,
		TitleMaxLength:    50,
		MaxExtractedChars: 20000,
		EventBuffer:       64,
	}
}
