// Package api exposes the HTTP surface: the inbound email webhook, content
// CRUD, playlists, the RSS feed, and health.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mailcast/core/internal/config"
	"github.com/mailcast/core/internal/ingest"
	"github.com/mailcast/core/internal/mailroute"
	"github.com/mailcast/core/internal/worker"
	"gorm.io/gorm"
)

// Deps carries the collaborators the handlers need. Constructed once in
// main and passed down explicitly.
type Deps struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Normalizer *ingest.Normalizer
	Detector   *ingest.LinkDetector
	MailRoute  *mailroute.Client
	Logger     *slog.Logger

	// Enqueue schedules enrichment for a freshly created record. Defaults
	// to the task queue client; tests substitute a stub.
	Enqueue func(contentID uint) error
}

// NewRouter initializes and returns the Gin router with all routes configured
func NewRouter(deps Deps) *gin.Engine {
	if deps.Enqueue == nil {
		deps.Enqueue = worker.EnqueueProcessContent
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Webhook entry point. The provider health-checks with GET and
		// delivers with POST, so every method is accepted.
		api.Any("/email/incoming", IncomingEmailHandler(deps))

		api.GET("/contents", ListContentsHandler(deps.DB))
		api.GET("/contents/:id", GetContentHandler(deps.DB))
		api.DELETE("/contents/:id", DeleteContentHandler(deps.DB))

		api.GET("/feed", FeedHandler(deps.DB, deps.Cfg))
		api.GET("/feed/:userId", FeedHandler(deps.DB, deps.Cfg))

		api.GET("/test-email", TestEmailHandler(deps.MailRoute))

		api.GET("/playlists", ListPlaylistsHandler(deps.DB))
		api.POST("/playlists", CreatePlaylistHandler(deps.DB))
		api.DELETE("/playlists/:id", DeletePlaylistHandler(deps.DB))
		api.GET("/playlists/:id/contents", ListPlaylistContentsHandler(deps.DB))
		api.POST("/playlists/:id/contents", AddPlaylistContentHandler(deps.DB))
		api.DELETE("/playlists/:id/contents/:contentId", RemovePlaylistContentHandler(deps.DB))
	}

	return router
}
