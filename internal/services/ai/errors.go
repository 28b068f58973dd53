// File: internal/services/ai/errors.go
package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type ErrorType string

const (
	ErrTypeConfig    ErrorType = "CONFIG"
	ErrTypeProvider  ErrorType = "PROVIDER"
	ErrTypeForbidden ErrorType = "FORBIDDEN"
	ErrTypeStream    ErrorType = "STREAM"
)

type AIError struct {
	Type      ErrorType
	Code      int
	Message   string
	Model     string
	Operation string
	Cause     error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AI %s error in %s: %s (caused by: %v)", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("AI %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *AIError) Unwrap() error { return e.Cause }

func NewConfigError(msg string) *AIError {
	return &AIError{Type: ErrTypeConfig, Message: msg, Operation: "config"}
}

func NewProviderError(operation, msg string, cause error) *AIError {
	return &AIError{Type: ErrTypeProvider, Operation: operation, Message: msg, Cause: cause}
}

// IsForbidden reports whether err is a provider authorization or billing
// rejection.
func IsForbidden(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr) && aiErr.Type == ErrTypeForbidden
}

// classify turns a go-openai error into an AIError, separating authorization
// and billing rejections from everything else.
func classify(operation, model string, err error) *AIError {
	var existing *AIError
	if errors.As(err, &existing) {
		return existing
	}

	out := &AIError{Type: ErrTypeProvider, Operation: operation, Model: model, Message: "provider request failed", Cause: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		out.Code = apiErr.HTTPStatusCode
		out.Message = apiErr.Message
		if forbiddenStatus(apiErr.HTTPStatusCode) || quotaCode(apiErr.Type) || quotaCode(fmt.Sprint(apiErr.Code)) {
			out.Type = ErrTypeForbidden
		}
	case errors.As(err, &reqErr):
		out.Code = reqErr.HTTPStatusCode
		if forbiddenStatus(reqErr.HTTPStatusCode) {
			out.Type = ErrTypeForbidden
		}
	}
	return out
}

func forbiddenStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusPaymentRequired || code == http.StatusForbidden
}

func quotaCode(s string) bool {
	return strings.Contains(strings.ToLower(s), "insufficient_quota")
}
