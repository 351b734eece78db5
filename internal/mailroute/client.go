// Package mailroute manages the inbound email routing provider: the
// forwarding route that delivers mail to the webhook, forwarding-address
// generation, address validation, and webhook signature verification.
package mailroute

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mailgun/mailgun-go/v4"
)

// ErrNotConfigured indicates provider credentials are missing. Routing
// features are disabled, the process keeps running.
var ErrNotConfigured = errors.New("mail routing provider not configured")

// Client wraps the Mailgun API for route and address management.
// Constructed once at startup and passed to the components that need it,
// never held as a package-level global.
type Client struct {
	mg               *mailgun.MailgunImpl
	validator        *mailgun.EmailValidatorImpl
	domain           string
	publicWebhookURL string
	signingKey       string
	logger           *slog.Logger
}

// NewClient creates a Client. Missing apiKey or domain yields an
// unconfigured client whose operations return ErrNotConfigured.
func NewClient(apiKey, domain, signingKey, publicWebhookURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		domain:           domain,
		publicWebhookURL: strings.TrimSuffix(publicWebhookURL, "/"),
		signingKey:       signingKey,
		logger:           logger,
	}

	if apiKey == "" || domain == "" {
		return c
	}

	c.mg = mailgun.NewMailgun(domain, apiKey)
	c.validator = mailgun.NewEmailValidator(apiKey)
	return c
}

// IsConfigured reports whether provider credentials are present.
func (c *Client) IsConfigured() bool {
	return c.mg != nil
}

// SignatureVerificationEnabled reports whether webhook authenticity checks
// should be enforced.
func (c *Client) SignatureVerificationEnabled() bool {
	return c.signingKey != ""
}

// Setup verifies the domain exists in the provider account and installs the
// forwarding route pointing at the public webhook URL. Stale routes for the
// domain are removed first so the setup is repeatable.
func (c *Client) Setup(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	found, err := c.domainExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}
	if !found {
		return fmt.Errorf("domain %s not found in provider account", c.domain)
	}

	if c.publicWebhookURL == "" {
		c.logger.Warn("PUBLIC_WEBHOOK_URL not set, skipping route creation. The provider cannot forward email to this instance.")
		return nil
	}

	if err := c.deleteStaleRoutes(ctx); err != nil {
		return fmt.Errorf("failed to clean up existing routes: %w", err)
	}

	webhookURL := c.publicWebhookURL + "/api/email/incoming"
	route := mailgun.Route{
		Priority:    0,
		Description: "Forward all incoming emails to the ingestion webhook",
		Expression:  fmt.Sprintf(`match_recipient(".*@%s")`, c.domain),
		Actions: []string{
			fmt.Sprintf(`forward("%s")`, webhookURL),
			"store()",
			"stop()",
		},
	}

	created, err := c.mg.CreateRoute(ctx, route)
	if err != nil {
		return fmt.Errorf("failed to create forwarding route: %w", err)
	}

	c.logger.Info("Email forwarding route created", "route_id", created.Id, "webhook_url", webhookURL)
	return nil
}

func (c *Client) domainExists(ctx context.Context) (bool, error) {
	it := c.mg.ListDomains(nil)
	var page []mailgun.Domain
	for it.Next(ctx, &page) {
		for _, d := range page {
			if d.Name == c.domain {
				return true, nil
			}
		}
	}
	if err := it.Err(); err != nil {
		return false, err
	}
	return false, nil
}

func (c *Client) deleteStaleRoutes(ctx context.Context) error {
	it := c.mg.ListRoutes(nil)
	var page []mailgun.Route
	for it.Next(ctx, &page) {
		for _, r := range page {
			if !strings.Contains(r.Expression, c.domain) {
				continue
			}
			if err := c.mg.DeleteRoute(ctx, r.Id); err != nil {
				return err
			}
			c.logger.Info("Deleted stale forwarding route", "route_id", r.Id)
		}
	}
	return it.Err()
}

// GenerateForwardingEmail produces a fresh forwarding address for a user.
func (c *Client) GenerateForwardingEmail(userID uint) (string, error) {
	if c.domain == "" {
		return "", ErrNotConfigured
	}
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("user.%d.%s@%s", userID, suffix, c.domain), nil
}

// ValidateEmail checks an address against the provider's validation API.
// Validation is advisory: an unconfigured client or a provider outage
// reports the address as valid so ingestion is never blocked by the check.
func (c *Client) ValidateEmail(ctx context.Context, email string) bool {
	if c.validator == nil {
		return true
	}
	verification, err := c.validator.ValidateEmail(ctx, email, false)
	if err != nil {
		c.logger.Warn("Email validation failed", "email", email, "error", err.Error())
		return true
	}
	return verification.IsValid
}

// SetValidationAPIBase overrides the validation endpoint. Used by tests to
// point the validator at a stub server.
func (c *Client) SetValidationAPIBase(url string) {
	if c.validator != nil {
		c.validator.SetAPIBase(url)
	}
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature over
// timestamp+token that the provider attaches to webhook deliveries. The
// HMAC is keyed by the webhook signing key, a separate secret from the API
// key, so it is computed here rather than through the provider SDK.
func (c *Client) VerifyWebhookSignature(timestamp, token, signature string) (bool, error) {
	if !c.SignatureVerificationEnabled() {
		return false, ErrNotConfigured
	}

	mac := hmac.New(sha256.New, []byte(c.signingKey))
	io.WriteString(mac, timestamp)
	io.WriteString(mac, token)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false, err
	}
	if len(provided) != len(expected) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(provided, expected) == 1, nil
}
