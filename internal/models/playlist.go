package models

import (
	"time"

	"gorm.io/gorm"
)

// Playlist is a user-defined ordered collection of content records.
type Playlist struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"userId"`
	User      User           `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Name      string         `gorm:"not null" json:"name"`

	Entries []PlaylistContent `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// PlaylistContent links a content record into a playlist at a position.
type PlaylistContent struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	PlaylistID uint      `gorm:"not null;index;uniqueIndex:idx_playlist_content" json:"playlistId"`
	ContentID  uint      `gorm:"not null;uniqueIndex:idx_playlist_content" json:"contentId"`
	Content    Content   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Position   int       `gorm:"not null" json:"position"`
}
