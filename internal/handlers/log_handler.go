// File: internal/handlers/log_handler.go
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FrontendLogPayload defines the structure for logs coming from the client.
type FrontendLogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Context any    `json:"context,omitempty"`
}

// LogFrontendEvent handles incoming log requests from the frontend.
func LogFrontendEvent(w http.ResponseWriter, r *http.Request) {
	var payload FrontendLogPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	level, err := zerolog.ParseLevel(payload.Level)
	if err != nil || level == zerolog.NoLevel || level > zerolog.ErrorLevel {
		level = zerolog.InfoLevel
	}
	log.WithLevel(level).
		Str("source", "client").
		Interface("context", payload.Context).
		Msg(payload.Message)

	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
