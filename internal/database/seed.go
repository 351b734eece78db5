package database

import (
	"fmt"
	"log"

	"github.com/mailcast/core/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB, mailDomain string) error {
	// Check if seed data already exists
	var existingUser models.User
	result := db.Where("id = ?", models.DevUserID).First(&existingUser)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	if mailDomain == "" {
		mailDomain = "mailcast.local"
	}

	// Create the fixed test user the webhook falls back to
	user := models.User{
		ID:              models.DevUserID,
		Email:           "dev@mailcast.local",
		ForwardingEmail: fmt.Sprintf("user.%d.dev@%s", models.DevUserID, mailDomain),
	}

	if err := db.Create(&user).Error; err != nil {
		return err
	}

	// Create a sample enriched record so the feed and list endpoints have data
	completed := models.Content{
		UserID:          user.ID,
		Title:           "Welcome to Mailcast",
		OriginalContent: "Forward a newsletter to your address and it will show up here, summarized and narrated.",
		SourceEmail:     "hello@mailcast.local",
		Status:          models.ContentStatusCompleted,
		IsProcessed:     true,
		Summary: datatypes.JSON([]byte(`{
			"intro": "Mailcast turns the newsletters in your inbox into short audio briefings.",
			"key_points": [
				"Forward any email to your personal address to ingest it",
				"Each email is summarized into a few key points",
				"A narrated audio version is attached to every record"
			],
			"ending": "Send your first email to get started.",
			"tags": ["welcome"]
		}`)),
	}

	if err := db.Create(&completed).Error; err != nil {
		return err
	}

	// Create a sample pending record
	pending := models.Content{
		UserID:          user.ID,
		Title:           "A newsletter still in flight",
		OriginalContent: "This record has not been enriched yet.",
		SourceEmail:     "news@example.com",
		Status:          models.ContentStatusPending,
	}

	if err := db.Create(&pending).Error; err != nil {
		return err
	}

	log.Println("Seeded dev data: 1 user, 2 content records")
	return nil
}
