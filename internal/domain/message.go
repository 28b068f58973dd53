// File: internal/domain/message.go
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Message represents a single message within a chat. Messages are ordered by
// CreatedAt; archived messages are hidden from normal history reads but kept
// for audit after an edit forks the conversation.
type Message struct {
	ID          string                        `gorm:"primaryKey;size:36" json:"id"`
	ChatID      string                        `gorm:"size:36;not null;index:idx_messages_chat_created,priority:1" json:"chatId"`
	Role        Role                          `gorm:"size:16;not null" json:"role"`
	Content     string                        `gorm:"type:text;not null" json:"content"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments"`
	Archived    bool                          `gorm:"not null;default:false;index" json:"archived"`
	Interrupted bool                          `gorm:"not null;default:false" json:"interrupted"`
	CreatedAt   time.Time                     `gorm:"not null;index:idx_messages_chat_created,priority:2" json:"createdAt"`
	EditedAt    *time.Time                    `json:"editedAt,omitempty"`
}

// Editable reports whether the message may be edited and regenerated. Only
// user messages without attachments qualify, since attachment context cannot
// be replayed.
func (m *Message) Editable() bool {
	return m.Role == RoleUser && len(m.Attachments) == 0
}
