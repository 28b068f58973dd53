// File: internal/services/chat/errors.go
package chat

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeUnauthorized      ErrorType = "UNAUTHORIZED"
	ErrTypeForbidden         ErrorType = "FORBIDDEN"
	ErrTypeNotFound          ErrorType = "NOT_FOUND"
	ErrTypeValidation        ErrorType = "VALIDATION"
	ErrTypeProviderForbidden ErrorType = "PROVIDER_FORBIDDEN"
	ErrTypeProviderFailure   ErrorType = "PROVIDER_FAILURE"
	ErrTypePersistence       ErrorType = "PERSISTENCE"
	ErrTypeConflict          ErrorType = "CONFLICT"
)

// User-facing messages for provider failures.
const (
	MsgProviderForbidden = "Access to the AI provider was forbidden. Check credits or API key."
	MsgProviderFailure   = "Failed to generate response."
)

type ChatError struct {
	Type      ErrorType
	Operation string
	Message   string
	ChatID    string
	UserID    string
	Cause     error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Chat %s error in %s: %s (caused by: %v)", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Chat %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ChatError) Unwrap() error { return e.Cause }

// UserMessage is the text safe to show to the end user.
func (e *ChatError) UserMessage() string {
	switch e.Type {
	case ErrTypeProviderForbidden:
		return MsgProviderForbidden
	case ErrTypeProviderFailure:
		return MsgProviderFailure
	case ErrTypePersistence:
		return "Failed to save conversation."
	}
	return e.Message
}

// TypeOf returns the ErrorType of err, or "" when err is not a ChatError.
func TypeOf(err error) ErrorType {
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return chatErr.Type
	}
	return ""
}

func NewValidationError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewUnauthorizedError(operation string) *ChatError {
	return &ChatError{Type: ErrTypeUnauthorized, Operation: operation, Message: "Unauthorized"}
}

func NewNotFoundError(operation, what, userID, chatID string) *ChatError {
	return &ChatError{
		Type:      ErrTypeNotFound,
		Operation: operation,
		Message:   what + " not found",
		UserID:    userID,
		ChatID:    chatID,
	}
}

func NewForbiddenError(operation, userID, chatID string) *ChatError {
	return &ChatError{Type: ErrTypeForbidden, Operation: operation, Message: "Forbidden", UserID: userID, ChatID: chatID}
}

func NewConflictError(operation, chatID string, cause error) *ChatError {
	return &ChatError{
		Type:      ErrTypeConflict,
		Operation: operation,
		Message:   "A response is already being generated for this chat.",
		ChatID:    chatID,
		Cause:     cause,
	}
}

func NewPersistenceError(operation, msg string, cause error) *ChatError {
	return &ChatError{Type: ErrTypePersistence, Operation: operation, Message: msg, Cause: cause}
}

func NewProviderError(operation string, forbidden bool, cause error) *ChatError {
	if forbidden {
		return &ChatError{Type: ErrTypeProviderForbidden, Operation: operation, Message: MsgProviderForbidden, Cause: cause}
	}
	return &ChatError{Type: ErrTypeProviderFailure, Operation: operation, Message: MsgProviderFailure, Cause: cause}
}
