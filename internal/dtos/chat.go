// File: internal/dtos/chat.go
package dtos

import (
	"time"

	"github.com/iyunix/go-chat/internal/domain"
	chatservice "github.com/iyunix/go-chat/internal/services/chat"
)

// ChatResponseDTO is a chat as listed in the sidebar.
type ChatResponseDTO struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ChatListResponseDTO struct {
	Chats []ChatResponseDTO `json:"chats"`
}

// MessageResponseDTO is one visible message. HTML is only filled when the
// caller asks for rendered content.
type MessageResponseDTO struct {
	ID          string              `json:"id"`
	Role        domain.Role         `json:"role"`
	Content     string              `json:"content"`
	Attachments []domain.Attachment `json:"attachments"`
	Interrupted bool                `json:"interrupted,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	EditedAt    *time.Time          `json:"editedAt,omitempty"`
	HTML        string              `json:"html,omitempty"`
}

type MessageListResponseDTO struct {
	Messages []MessageResponseDTO `json:"messages"`
}

type IDResponseDTO struct {
	ID string `json:"id"`
}

type CreateChatRequestDTO struct {
	Title string `json:"title"`
}

type AppendMessageRequestDTO struct {
	Role        domain.Role         `json:"role"`
	Content     string              `json:"content"`
	Attachments []domain.Attachment `json:"attachments"`
}

type EditMessageRequestDTO struct {
	Content string `json:"content"`
}

// TurnRequestDTO is the body of a streamed chat turn.
type TurnRequestDTO struct {
	ChatID          string                     `json:"chatId,omitempty"`
	Messages        []chatservice.InputMessage `json:"messages"`
	LastAttachments []domain.Attachment        `json:"lastAttachments,omitempty"`
	Regenerate      bool                       `json:"regenerate,omitempty"`
}

type UploadResponseDTO struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	MediaType     string `json:"mediaType"`
	ExtractedText string `json:"extractedText"`
}

type ProfileResponseDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type ErrorResponseDTO struct {
	Error string `json:"error"`
}

func ToChatResponseDTO(c domain.Chat) ChatResponseDTO {
	return ChatResponseDTO{
		ID:         c.ID,
		Title:      c.Title,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func ToChatListResponseDTO(chats []domain.Chat) ChatListResponseDTO {
	out := ChatListResponseDTO{Chats: make([]ChatResponseDTO, 0, len(chats))}
	for _, c := range chats {
		out.Chats = append(out.Chats, ToChatResponseDTO(c))
	}
	return out
}

func ToMessageResponseDTO(m domain.Message) MessageResponseDTO {
	atts := []domain.Attachment(m.Attachments)
	if atts == nil {
		atts = []domain.Attachment{}
	}
	return MessageResponseDTO{
		ID:          m.ID,
		Role:        m.Role,
		Content:     m.Content,
		Attachments: atts,
		Interrupted: m.Interrupted,
		CreatedAt:   m.CreatedAt,
		EditedAt:    m.EditedAt,
	}
}

// ToTurnRequest maps the wire body onto the orchestrator request.
func (d TurnRequestDTO) ToTurnRequest(ownerID string) chatservice.TurnRequest {
	return chatservice.TurnRequest{
		OwnerID:     ownerID,
		ChatID:      d.ChatID,
		Messages:    d.Messages,
		Attachments: d.LastAttachments,
		Regenerate:  d.Regenerate,
	}
}

func ToProfileResponseDTO(u *domain.User) ProfileResponseDTO {
	return ProfileResponseDTO{ID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.AvatarURL}
}
