// File: internal/handlers/chat_handler.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/dtos"
	"github.com/iyunix/go-chat/internal/render"
	"github.com/iyunix/go-chat/internal/services"
)

type ChatHandler struct {
	UserService *services.UserService
	ChatService *services.ChatService
	Markdown    *render.Markdown
}

func NewChatHandler(us *services.UserService, cs *services.ChatService, md *render.Markdown) *ChatHandler {
	return &ChatHandler{
		UserService: us,
		ChatService: cs,
		Markdown:    md,
	}
}

// ListChats returns the caller's chats and refreshes the cached profile.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if h.UserService != nil {
		if _, err := h.UserService.UpsertProfile(r.Context(), *p); err != nil {
			log.Warn().Err(err).Str("user_id", p.UserID).Msg("[ChatHandler] profile upsert failed")
		}
	}
	h.History(w, r)
}

// History lists the caller's chats, most recently active first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	chats, err := h.ChatService.ListChats(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dtos.ToChatListResponseDTO(chats))
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dtos.CreateChatRequestDTO
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	chat, err := h.ChatService.CreateChat(r.Context(), p.UserID, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dtos.IDResponseDTO{ID: chat.ID})
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.ChatService.DeleteChat(r.Context(), p.UserID, mux.Vars(r)["chatId"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMessages returns the visible history. ?format=html adds rendered
// markdown to each message.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	msgs, err := h.ChatService.GetMessages(r.Context(), p.UserID, mux.Vars(r)["chatId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	withHTML := r.URL.Query().Get("format") == "html" && h.Markdown != nil
	out := dtos.MessageListResponseDTO{Messages: make([]dtos.MessageResponseDTO, 0, len(msgs))}
	for _, m := range msgs {
		dto := dtos.ToMessageResponseDTO(m)
		if withHTML {
			html, err := h.Markdown.HTML(m.Content)
			if err != nil {
				log.Warn().Err(err).Str("message_id", m.ID).Msg("[ChatHandler] markdown render failed")
			}
			dto.HTML = html
		}
		out.Messages = append(out.Messages, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChatHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dtos.AppendMessageRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msg, err := h.ChatService.AppendMessage(r.Context(), p.UserID, mux.Vars(r)["chatId"], req.Role, req.Content, req.Attachments)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dtos.IDResponseDTO{ID: msg.ID})
}

// EditMessage rewrites a user message and archives the rest of the chat
// after it.
func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dtos.EditMessageRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := h.ChatService.EditMessage(r.Context(), p.UserID, mux.Vars(r)["messageId"], req.Content); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
