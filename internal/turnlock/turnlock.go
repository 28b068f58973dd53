// Package turnlock admits at most one active turn per chat.
package turnlock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned when another turn already holds the chat.
var ErrLocked = errors.New("a turn is already in progress for this chat")

// Locker acquires per-chat turn locks. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, chatID string) (release func(), err error)
}

// Memory is a Locker for a single process.
type Memory struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{active: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, chatID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.active[chatID]; held {
		return nil, ErrLocked
	}
	m.active[chatID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.active, chatID)
			m.mu.Unlock()
		})
	}, nil
}
