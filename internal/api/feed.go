package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/mailcast/core/internal/ai"
	"github.com/mailcast/core/internal/config"
	"github.com/mailcast/core/internal/models"
	"gorm.io/gorm"
)

// FeedHandler renders content records as an RSS 2.0 feed, one item per
// record, with the narrated audio attached as an enclosure. Without a
// userId parameter the feed covers all records.
func FeedHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Order("created_at DESC")
		if param := c.Param("userId"); param != "" {
			userID, err := strconv.Atoi(param)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
				return
			}
			var user models.User
			if err := db.First(&user, userID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			query = query.Where("user_id = ?", userID)
		}

		var contents []models.Content
		if err := query.Find(&contents).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to fetch contents",
			})
			return
		}

		baseURL := cfg.PublicWebhookURL
		if baseURL == "" {
			baseURL = "http://" + c.Request.Host
		}

		feed := &feeds.Feed{
			Title:       "Mailcast",
			Link:        &feeds.Link{Href: baseURL + "/api/feed"},
			Description: "Narrated summaries of your email newsletters",
			Created:     time.Now(),
		}

		for _, content := range contents {
			item := &feeds.Item{
				Title:       content.Title,
				Id:          fmt.Sprintf("%d", content.ID),
				IsPermaLink: "false",
				Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/contents/%d", baseURL, content.ID)},
				Description: feedDescription(content),
				Created:     content.CreatedAt,
			}
			if content.AudioURL != "" {
				item.Enclosure = &feeds.Enclosure{
					Url:    content.AudioURL,
					Length: "0",
					Type:   "audio/mpeg",
				}
			}
			feed.Items = append(feed.Items, item)
		}

		rss, err := feed.ToRss()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to render feed",
			})
			return
		}

		c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
	}
}

// feedDescription prefers the enriched summary; unprocessed records fall
// back to a truncated slice of the original text.
func feedDescription(content models.Content) string {
	if len(content.Summary) > 0 {
		var summary ai.Summary
		if err := json.Unmarshal(content.Summary, &summary); err == nil && summary.Intro != "" {
			return summary.Intro
		}
	}

	text := content.OriginalContent
	if len(text) > 300 {
		cut := 300
		// Back up to a rune boundary so the cut never splits a character
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "…"
	}
	return text
}
