package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// linkUserAgent identifies the confirmation fetcher to newsletter providers.
const linkUserAgent = "Mailcast/1.0 (newsletter subscription confirmation; +https://github.com/mailcast/core)"

// Verification link patterns, ordered by specificity: explicit
// confirm/verify/subscribe/activate URLs first, then known publishing
// platform confirmation hosts.
var verificationLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[^\s<>"')]*(?:confirm|confirmation)[^\s<>"')]*`),
	regexp.MustCompile(`https?://[^\s<>"')]*(?:verify|verification)[^\s<>"')]*`),
	regexp.MustCompile(`https?://[^\s<>"')]*(?:subscribe|subscription)[^\s<>"')]*`),
	regexp.MustCompile(`https?://[^\s<>"')]*activat[^\s<>"')]*`),
	regexp.MustCompile(`https?://[^\s<>"')]*\.substack\.com/[^\s<>"')]+`),
	regexp.MustCompile(`https?://[^\s<>"')]*\.beehiiv\.com/[^\s<>"')]+`),
	regexp.MustCompile(`https?://[^\s<>"')]*buttondown[^\s<>"')]*/[^\s<>"')]+`),
	regexp.MustCompile(`https?://[^\s<>"')]*list-manage\.com/[^\s<>"')]+`),
}

// VerificationResult reports the outcome of a confirmation-link fetch.
// Stored in the content record's metadata when successful.
type VerificationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// LinkDetector opportunistically resolves newsletter double opt-in links
// found in normalized email text.
type LinkDetector struct {
	client *http.Client
	logger *slog.Logger
}

// NewLinkDetector creates a LinkDetector with a redirect-following HTTP
// client and a fetch timeout.
func NewLinkDetector(logger *slog.Logger) *LinkDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkDetector{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Detect scans text for the first verification link and attempts to fetch
// it. Network failures are reported in the result, never returned as an
// error, so ingestion continues regardless of the outcome.
func (d *LinkDetector) Detect(ctx context.Context, text string) VerificationResult {
	var link string
	for _, pattern := range verificationLinkPatterns {
		if match := pattern.FindString(text); match != "" {
			link = match
			break
		}
	}
	if link == "" {
		return VerificationResult{Success: false, Message: "no verification link found"}
	}

	d.logger.Info("Found verification link, attempting confirmation", "link", link)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return VerificationResult{
			Success: false,
			Message: fmt.Sprintf("invalid verification link: %v", err),
			Link:    link,
		}
	}
	req.Header.Set("User-Agent", linkUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("Verification link fetch failed", "link", link, "error", err.Error())
		return VerificationResult{
			Success: false,
			Message: fmt.Sprintf("failed to fetch verification link: %v", err),
			Link:    link,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return VerificationResult{
			Success: true,
			Message: "verification link confirmed",
			Link:    link,
		}
	}

	return VerificationResult{
		Success: false,
		Message: fmt.Sprintf("verification link returned status %d", resp.StatusCode),
		Link:    link,
	}
}
