// File: internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/auth"
	"github.com/iyunix/go-chat/internal/dtos"
	"github.com/iyunix/go-chat/internal/middleware"
	chatservice "github.com/iyunix/go-chat/internal/services/chat"
)

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, dtos.ErrorResponseDTO{Error: message})
}

// writeServiceError maps a service error onto its status code and a message
// that is safe to show.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var chatErr *chatservice.ChatError
	if !errors.As(err, &chatErr) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("[Handlers] unexpected error")
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := StatusFor(chatErr.Type)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.RequestIDFrom(r.Context())).Msg("[Handlers] request failed")
	}
	writeError(w, chatErr.UserMessage(), status)
}

// StatusFor is the HTTP status of each error type.
func StatusFor(t chatservice.ErrorType) int {
	switch t {
	case chatservice.ErrTypeUnauthorized:
		return http.StatusUnauthorized
	case chatservice.ErrTypeForbidden, chatservice.ErrTypeProviderForbidden:
		return http.StatusForbidden
	case chatservice.ErrTypeNotFound:
		return http.StatusNotFound
	case chatservice.ErrTypeValidation:
		return http.StatusBadRequest
	case chatservice.ErrTypeProviderFailure:
		return http.StatusBadGateway
	case chatservice.ErrTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// principal returns the authenticated caller or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return p, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20))
	return dec.Decode(v)
}
