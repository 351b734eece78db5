package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailcast/core/internal/mailroute"
	"github.com/mailcast/core/internal/models"
	"gorm.io/gorm"
)

// ListContentsHandler returns all content records, newest first.
func ListContentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var contents []models.Content
		if err := db.Order("created_at DESC").Find(&contents).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to fetch contents",
			})
			return
		}
		c.JSON(http.StatusOK, contents)
	}
}

// GetContentHandler returns a single content record by id.
func GetContentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content id"})
			return
		}

		var content models.Content
		if err := db.First(&content, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
			return
		}
		c.JSON(http.StatusOK, content)
	}
}

// DeleteContentHandler deletes a content record by id. Idempotent: deleting
// a record that does not exist still succeeds.
func DeleteContentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content id"})
			return
		}

		// Detach from playlists first so listings stay consistent
		if err := db.Where("content_id = ?", id).Delete(&models.PlaylistContent{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to delete content",
			})
			return
		}

		if err := db.Delete(&models.Content{}, id).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to delete content",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Content deleted successfully"})
	}
}

// TestEmailHandler returns a freshly generated forwarding address for
// manual testing.
func TestEmailHandler(client *mailroute.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate test email address"})
			return
		}

		email, err := client.GenerateForwardingEmail(models.DevUserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate test email address"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"email":        email,
			"instructions": "Send an email to this address to test the email processing functionality",
		})
	}
}
