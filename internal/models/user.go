package models

import (
	"time"

	"gorm.io/gorm"
)

// DevUserID is the fixed user the webhook falls back to when the recipient
// address does not match any forwarding address. Seeded in development.
const DevUserID uint = 999

// User owns ingested content. ForwardingEmail is the provider-generated
// address that routes inbound mail to the webhook.
type User struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Email           string         `gorm:"uniqueIndex:idx_users_email_not_deleted,where:deleted_at IS NULL;not null" json:"email"`
	ForwardingEmail string         `gorm:"uniqueIndex:idx_users_forwarding_not_deleted,where:deleted_at IS NULL;not null" json:"forwardingEmail"`

	// Associations
	Contents  []Content  `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Playlists []Playlist `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}
