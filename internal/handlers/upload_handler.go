// File: internal/handlers/upload_handler.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/dtos"
	"github.com/iyunix/go-chat/internal/metrics"
	"github.com/iyunix/go-chat/internal/services"
	"github.com/iyunix/go-chat/internal/services/attachment"
	chatservice "github.com/iyunix/go-chat/internal/services/chat"
)

type UploadHandler struct {
	Ingestor    *attachment.Ingestor
	ChatService *services.ChatService
	MaxBytes    int64
}

func NewUploadHandler(ing *attachment.Ingestor, cs *services.ChatService, maxBytes int64) *UploadHandler {
	return &UploadHandler{Ingestor: ing, ChatService: cs, MaxBytes: maxBytes}
}

// Upload stores a multipart "file". A chatId in the query string is checked
// for ownership before the body is read; one sent as a form field is checked
// after parsing but before anything is stored.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	uploads := metrics.Global().Uploads

	queryChatID := r.URL.Query().Get("chatId")
	if queryChatID != "" && !h.authorizeChat(w, r, p.UserID, queryChatID) {
		return
	}

	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		uploads.WithLabelValues("rejected").Inc()
		writeError(w, "Content-Type must be multipart/form-data", http.StatusBadRequest)
		return
	}

	if chatID := r.PostFormValue("chatId"); chatID != "" && chatID != queryChatID {
		if !h.authorizeChat(w, r, p.UserID, chatID) {
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		uploads.WithLabelValues("rejected").Inc()
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		uploads.WithLabelValues("rejected").Inc()
		writeError(w, "Could not read file", http.StatusBadRequest)
		return
	}

	att, err := h.Ingestor.Ingest(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, attachment.ErrEmptyFile):
			uploads.WithLabelValues("rejected").Inc()
			writeError(w, "No file provided", http.StatusBadRequest)
		case errors.Is(err, attachment.ErrFileTooLarge):
			uploads.WithLabelValues("rejected").Inc()
			writeError(w, "File too large", http.StatusRequestEntityTooLarge)
		default:
			uploads.WithLabelValues("failed").Inc()
			log.Error().Err(err).Str("user_id", p.UserID).Msg("[UploadHandler] upload failed")
			writeError(w, "Upload failed", http.StatusInternalServerError)
		}
		return
	}

	uploads.WithLabelValues("stored").Inc()
	writeJSON(w, http.StatusOK, dtos.UploadResponseDTO{
		URL:           att.URL,
		Name:          att.Name,
		MediaType:     att.MediaType,
		ExtractedText: att.ExtractedText,
	})
}

func (h *UploadHandler) authorizeChat(w http.ResponseWriter, r *http.Request, userID, chatID string) bool {
	err := h.ChatService.RequireOwned(r.Context(), "upload", userID, chatID)
	if err == nil {
		return true
	}
	metrics.Global().Uploads.WithLabelValues("rejected").Inc()
	if chatservice.TypeOf(err) == chatservice.ErrTypeNotFound {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	writeServiceError(w, r, err)
	return false
}
