package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mailcast/core/internal/ingest"
	"github.com/mailcast/core/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxWebhookBody caps form and multipart payload parsing at 10MB,
// matching the provider's delivery limits.
const maxWebhookBody = 10 << 20

// IncomingEmailHandler is the webhook entry point. The synchronous phase
// (verify, normalize, persist, enqueue) completes before the response;
// enrichment happens on the task queue afterwards.
func IncomingEmailHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		// GET is used by the provider (and humans) to verify the endpoint
		if c.Request.Method == http.MethodGet {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"message": "Email webhook endpoint is active",
			})
			return
		}

		payload := payloadFromRequest(c)

		// Webhook authenticity: enforced only when a signing key is configured
		if deps.MailRoute != nil && deps.MailRoute.SignatureVerificationEnabled() {
			verified, err := deps.MailRoute.VerifyWebhookSignature(
				payload["timestamp"], payload["token"], payload["signature"])
			if err != nil || !verified {
				deps.Logger.Warn("Rejected webhook with invalid signature")
				c.JSON(http.StatusForbidden, gin.H{"error": "Invalid webhook signature"})
				return
			}
		}

		email, err := deps.Normalizer.Normalize(payload)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ingest.DescribeError(err)})
			return
		}

		if deps.Cfg.ValidateSenders && deps.MailRoute != nil {
			if !deps.MailRoute.ValidateEmail(c.Request.Context(), email.SenderEmail) {
				deps.Logger.Warn("Rejected email with invalid sender", "sender", email.SenderEmail)
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sender address"})
				return
			}
		}

		user, err := resolveUser(deps.DB, email.Recipient)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		// Opportunistic double opt-in confirmation. Failures never block
		// content creation.
		var metadata datatypes.JSON
		if deps.Detector != nil {
			result := deps.Detector.Detect(c.Request.Context(), email.Text)
			if result.Success {
				meta, _ := json.Marshal(map[string]string{
					"type":   "verification",
					"link":   result.Link,
					"status": "processed",
				})
				metadata = datatypes.JSON(meta)
			}
		}

		title := email.Subject
		if title == "" {
			title = "Untitled"
		}

		deps.Logger.Info(
			"Creating content record",
			"user_id", user.ID,
			"title", title,
			"content_length", len(email.Text),
			"source_email", email.SenderEmail,
		)

		content := models.Content{
			UserID:          user.ID,
			Title:           title,
			OriginalContent: email.Text,
			SourceEmail:     email.SenderEmail,
			Metadata:        metadata,
			Status:          models.ContentStatusPending,
		}

		if err := deps.DB.Create(&content).Error; err != nil {
			deps.Logger.Error("Failed to create content record", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to process incoming email",
			})
			return
		}

		if err := deps.Enqueue(content.ID); err != nil {
			deps.DB.Model(&content).Updates(map[string]interface{}{
				"status":        models.ContentStatusFailed,
				"error_message": "Failed to enqueue enrichment task",
			})
			deps.Logger.Error("Failed to enqueue enrichment task", "content_id", content.ID, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"message": "Failed to queue email for processing",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "Email received and queued for processing",
			"contentId": content.ID,
		})
	}
}

// resolveUser matches the delivery recipient to a forwarding address,
// falling back to the fixed development user.
func resolveUser(db *gorm.DB, recipient string) (*models.User, error) {
	var user models.User
	if recipient != "" {
		if err := db.Where("forwarding_email = ?", recipient).First(&user).Error; err == nil {
			return &user, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if err := db.First(&user, models.DevUserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// payloadFromRequest flattens the webhook body into a field map. The
// provider delivers form-encoded or multipart bodies; JSON is accepted for
// manual testing.
func payloadFromRequest(c *gin.Context) ingest.Payload {
	payload := ingest.Payload{}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err == nil {
			for k, v := range body {
				if s, ok := v.(string); ok {
					payload[k] = s
				}
			}
		}
		return payload
	}

	// ParseMultipartForm also parses url-encoded bodies; ErrNotMultipart
	// just means there were no file parts.
	if err := c.Request.ParseMultipartForm(maxWebhookBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		_ = c.Request.ParseForm()
	}
	for k, vs := range c.Request.Form {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}
	if c.Request.MultipartForm != nil {
		for k, vs := range c.Request.MultipartForm.Value {
			if len(vs) > 0 {
				payload[k] = vs[0]
			}
		}
	}
	return payload
}
