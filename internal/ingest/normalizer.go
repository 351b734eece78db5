// Package ingest normalizes heterogeneous inbound email webhook payloads
// into a single canonical plain-text artifact.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jhillyerd/enmime"
)

// Recognized webhook payload fields (provider-defined, case-sensitive)
const (
	FieldSender       = "sender"
	FieldFrom         = "from"
	FieldRecipient    = "recipient"
	FieldSubject      = "subject"
	FieldBodyPlain    = "body-plain"
	FieldStrippedText = "stripped-text"
	FieldBodyMIME     = "body-mime"
	FieldBodyHTML     = "body-html"
	FieldStrippedHTML = "stripped-html"
)

var (
	// ErrNoContent indicates no payload field yielded usable text
	ErrNoContent = errors.New("no content found in email")
	// ErrNoSender indicates the sender address could not be resolved
	ErrNoSender = errors.New("no sender email found")
)

// Payload is the field map of one inbound webhook request.
type Payload map[string]string

// Email is the canonical artifact produced from a webhook payload.
type Email struct {
	Text        string
	SenderEmail string
	Subject     string
	Recipient   string
}

// extractor is one payload-shape strategy. It returns the extracted text and
// whether the strategy applied.
type extractor struct {
	name string
	fn   func(p Payload) (string, bool)
}

// Normalizer reduces the provider's payload shapes to one text field by
// trying a priority-ordered list of extractor strategies.
//
// The order is: MIME part, stripped text, plain body, with the
// HTML-to-markdown conversion inserted ahead of the plain body when
// preferred, and kept as a last resort otherwise.
type Normalizer struct {
	extractors []extractor
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer. When preferHTMLMarkdown is set, an
// HTML body converted to markdown wins over the pre-stripped plain fallback.
func NewNormalizer(preferHTMLMarkdown bool, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	converter := md.NewConverter("", true, nil)

	mime := extractor{name: "mime", fn: func(p Payload) (string, bool) {
		raw, ok := nonEmpty(p[FieldBodyMIME])
		if !ok {
			return "", false
		}
		env, err := enmime.ReadEnvelope(strings.NewReader(raw))
		if err != nil {
			logger.Warn("Failed to parse MIME body, falling back", "error", err.Error())
			return "", false
		}
		if text, ok := nonEmpty(env.Text); ok {
			return text, true
		}
		if html, ok := nonEmpty(env.HTML); ok {
			if converted, err := converter.ConvertString(html); err == nil {
				return converted, true
			}
		}
		return "", false
	}}

	stripped := extractor{name: "stripped-text", fn: func(p Payload) (string, bool) {
		return nonEmpty(p[FieldStrippedText])
	}}

	plain := extractor{name: "body-plain", fn: func(p Payload) (string, bool) {
		return nonEmpty(p[FieldBodyPlain])
	}}

	htmlMarkdown := extractor{name: "html-markdown", fn: func(p Payload) (string, bool) {
		html, ok := nonEmpty(p[FieldBodyHTML])
		if !ok {
			html, ok = nonEmpty(p[FieldStrippedHTML])
		}
		if !ok {
			return "", false
		}
		converted, err := converter.ConvertString(html)
		if err != nil {
			logger.Warn("Failed to convert HTML body to markdown", "error", err.Error())
			return "", false
		}
		return nonEmptyStrict(converted)
	}}

	order := []extractor{mime, stripped, plain, htmlMarkdown}
	if preferHTMLMarkdown {
		order = []extractor{mime, stripped, htmlMarkdown, plain}
	}

	return &Normalizer{extractors: order, logger: logger}
}

// Normalize produces the canonical Email from a webhook payload.
// Returns ErrNoContent when no strategy yields text, ErrNoSender when the
// sender address cannot be resolved.
func (n *Normalizer) Normalize(p Payload) (*Email, error) {
	var text string
	for _, e := range n.extractors {
		if extracted, ok := e.fn(p); ok {
			n.logger.Debug("Extracted email body", "strategy", e.name, "length", len(extracted))
			text = extracted
			break
		}
	}
	if text == "" {
		return nil, ErrNoContent
	}

	sender, err := ResolveSender(p)
	if err != nil {
		return nil, err
	}

	return &Email{
		Text:        text,
		SenderEmail: sender,
		Subject:     strings.TrimSpace(p[FieldSubject]),
		Recipient:   strings.TrimSpace(p[FieldRecipient]),
	}, nil
}

var angleAddrPattern = regexp.MustCompile(`<(.+)>`)

// ResolveSender picks the sender address: the `sender` field wins, else the
// address inside angle brackets of `from`, else `from` verbatim.
func ResolveSender(p Payload) (string, error) {
	if sender, ok := nonEmpty(p[FieldSender]); ok {
		return strings.TrimSpace(sender), nil
	}

	from := strings.TrimSpace(p[FieldFrom])
	if from == "" {
		return "", ErrNoSender
	}
	if m := angleAddrPattern.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return from, nil
}

// nonEmpty reports whether s contains non-whitespace content, returning s
// unchanged so pass-through strategies never alter the body.
func nonEmpty(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// nonEmptyStrict trims the converted output before returning it.
func nonEmptyStrict(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}

// DescribeError renders a normalization failure for HTTP error responses.
func DescribeError(err error) string {
	switch {
	case errors.Is(err, ErrNoContent):
		return "No content found in email"
	case errors.Is(err, ErrNoSender):
		return "No sender email found"
	default:
		return fmt.Sprintf("invalid email payload: %v", err)
	}
}
