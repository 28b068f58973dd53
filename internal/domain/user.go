// File: internal/domain/user.go
package domain

import "time"

// User is the locally cached profile of an identity-provider principal,
// upserted on authenticated requests.
type User struct {
	ID        string    `gorm:"primaryKey;size:191" json:"id"`
	Email     string    `gorm:"size:320" json:"email"`
	Name      string    `gorm:"size:200" json:"name"`
	AvatarURL string    `gorm:"size:1024" json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
