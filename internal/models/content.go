package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Content status constants
const (
	ContentStatusPending    = "pending"
	ContentStatusProcessing = "processing"
	ContentStatusCompleted  = "completed"
	ContentStatusFailed     = "failed"
)

// Content is one ingested email and its derived artifacts. A record is
// visible to readers immediately after insertion with IsProcessed=false;
// the enrichment worker is the only writer after creation and flips
// IsProcessed exactly once, when both summary and audio are attached.
type Content struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	UserID          uint           `gorm:"not null;index" json:"userId"`
	User            User           `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Title           string         `gorm:"not null;default:'Untitled'" json:"title"`
	OriginalContent string         `gorm:"type:text;not null" json:"originalContent"`
	Summary         datatypes.JSON `gorm:"type:jsonb" json:"summary,omitempty"`
	AudioURL        string         `gorm:"column:audio_url;type:text" json:"audioUrl,omitempty"`
	SourceEmail     string         `json:"sourceEmail"`
	Metadata        datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	Status          string         `gorm:"not null;default:'pending';index" json:"status"`
	ErrorMessage    string         `gorm:"column:error_message;type:text" json:"errorMessage,omitempty"`
	IsProcessed     bool           `gorm:"not null;default:false" json:"isProcessed"`
	ProcessedAt     *time.Time     `json:"processedAt,omitempty"`
}
