// File: internal/services/memory/errors.go
package memory

import "fmt"

type MemoryError struct {
	Type    string
	Message string
	Err     error
}

func (e *MemoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("memory %s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("memory %s error: %s", e.Type, e.Message)
}

func (e *MemoryError) Unwrap() error {
	return e.Err
}

func NewConfigError(message string) *MemoryError {
	return &MemoryError{Type: "config", Message: message}
}

func NewOperationError(message string, err error) *MemoryError {
	return &MemoryError{Type: "operation", Message: message, Err: err}
}

func NewTimeoutError(message string, err error) *MemoryError {
	return &MemoryError{Type: "timeout", Message: message, Err: err}
}

func NewRetryError(message string, err error) *MemoryError {
	return &MemoryError{Type: "retry", Message: message, Err: err}
}
