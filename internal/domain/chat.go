// File: internal/domain/chat.go
package domain

import "time"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// DefaultChatTitle is used when a chat is created without any user text.
const DefaultChatTitle = "New chat"

// Chat represents a single conversation thread. OwnerID is the identity
// provider's subject; every read and write is scoped by it.
type Chat struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	OwnerID    string     `gorm:"size:191;not null;index:idx_chats_owner_updated,priority:1" json:"ownerId"`
	Visibility Visibility `gorm:"size:16;not null" json:"visibility"`
	CreatedAt  time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"not null;index:idx_chats_owner_updated,priority:2" json:"updatedAt"`
}
