// File: internal/handlers/turn_handler.go
package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/dtos"
	"github.com/iyunix/go-chat/internal/relay"
	"github.com/iyunix/go-chat/internal/services"
)

type TurnHandler struct {
	ChatService *services.ChatService
}

func NewTurnHandler(cs *services.ChatService) *TurnHandler {
	return &TurnHandler{ChatService: cs}
}

// StreamTurn runs one chat turn and relays the model output as an event
// stream. Errors raised before the model call are plain JSON responses; the
// chat id travels in the X-Chat-Id header.
func (h *TurnHandler) StreamTurn(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dtos.TurnRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turn, err := h.ChatService.RunTurn(r.Context(), req.ToTurnRequest(p.UserID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer turn.Cancel()

	w.Header().Set(relay.HeaderChatID, turn.ChatID)
	if turn.UserMessageID != "" {
		w.Header().Set(relay.HeaderMessageID, turn.UserMessageID)
	}
	enc, err := relay.NewEncoder(w)
	if err != nil {
		writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)

	for ev := range turn.Events() {
		if err := enc.Encode(ev); err != nil {
			log.Debug().Err(err).Str("chat_id", turn.ChatID).Msg("[TurnHandler] client went away")
			return
		}
	}
	_ = enc.Done()
}
