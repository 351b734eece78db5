package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailcast/core/internal/models"
	"gorm.io/gorm"
)

// ListPlaylistsHandler returns all playlists, newest first.
func ListPlaylistsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var playlists []models.Playlist
		if err := db.Order("created_at DESC").Find(&playlists).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to fetch playlists",
			})
			return
		}
		c.JSON(http.StatusOK, playlists)
	}
}

// CreatePlaylistHandler creates a named playlist.
func CreatePlaylistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name   string `json:"name"`
			UserID uint   `json:"userId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Playlist name is required"})
			return
		}
		if body.UserID == 0 {
			body.UserID = models.DevUserID
		}

		playlist := models.Playlist{UserID: body.UserID, Name: body.Name}
		if err := db.Create(&playlist).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to create playlist",
			})
			return
		}
		c.JSON(http.StatusOK, playlist)
	}
}

// DeletePlaylistHandler deletes a playlist and its entries. Idempotent.
func DeletePlaylistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid playlist id"})
			return
		}

		if err := db.Where("playlist_id = ?", id).Delete(&models.PlaylistContent{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to delete playlist",
			})
			return
		}
		if err := db.Delete(&models.Playlist{}, id).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to delete playlist",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Playlist deleted successfully"})
	}
}

// ListPlaylistContentsHandler returns the playlist's content records in
// playlist order.
func ListPlaylistContentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid playlist id"})
			return
		}

		var playlist models.Playlist
		if err := db.First(&playlist, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Playlist not found"})
			return
		}

		var entries []models.PlaylistContent
		if err := db.Where("playlist_id = ?", id).Order("position ASC").Preload("Content").Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to fetch playlist contents",
			})
			return
		}

		contents := make([]models.Content, 0, len(entries))
		for _, entry := range entries {
			contents = append(contents, entry.Content)
		}
		c.JSON(http.StatusOK, contents)
	}
}

// AddPlaylistContentHandler appends a content record to a playlist.
func AddPlaylistContentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid playlist id"})
			return
		}

		var body struct {
			ContentID uint `json:"contentId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.ContentID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "contentId is required"})
			return
		}

		var playlist models.Playlist
		if err := db.First(&playlist, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Playlist not found"})
			return
		}
		var content models.Content
		if err := db.First(&content, body.ContentID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
			return
		}

		// Append at the end of the playlist
		var maxPosition int
		db.Model(&models.PlaylistContent{}).
			Where("playlist_id = ?", id).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition)

		entry := models.PlaylistContent{
			PlaylistID: playlist.ID,
			ContentID:  content.ID,
			Position:   maxPosition + 1,
		}
		if err := db.Where("playlist_id = ? AND content_id = ?", playlist.ID, content.ID).
			FirstOrCreate(&entry).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to add content to playlist",
			})
			return
		}

		c.JSON(http.StatusOK, entry)
	}
}

// RemovePlaylistContentHandler removes a content record from a playlist.
// Idempotent.
func RemovePlaylistContentHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid playlist id"})
			return
		}
		contentID, err := strconv.Atoi(c.Param("contentId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content id"})
			return
		}

		if err := db.Where("playlist_id = ? AND content_id = ?", id, contentID).
			Delete(&models.PlaylistContent{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to remove content from playlist",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Content removed from playlist"})
	}
}
