package mailroute

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(key, timestamp, token string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp + token))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewClient("api-key", "mailcast.test", "signing-key", "", nil)
	require.True(t, c.SignatureVerificationEnabled())

	timestamp, token := "1724800000", "tok-abc"

	ok, err := c.VerifyWebhookSignature(timestamp, token, signPayload("signing-key", timestamp, token))
	require.NoError(t, err)
	assert.True(t, ok)

	// Signed with the API key instead of the signing key
	ok, err = c.VerifyWebhookSignature(timestamp, token, signPayload("api-key", timestamp, token))
	require.NoError(t, err)
	assert.False(t, ok)

	// Tampered timestamp
	ok, err = c.VerifyWebhookSignature("1724800001", token, signPayload("signing-key", timestamp, token))
	require.NoError(t, err)
	assert.False(t, ok)

	// Signature that is not hex
	_, err = c.VerifyWebhookSignature(timestamp, token, "not-hex")
	assert.Error(t, err)

	// Truncated signature is rejected without error
	ok, err = c.VerifyWebhookSignature(timestamp, token, "abcd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWebhookSignatureWithoutSigningKey(t *testing.T) {
	c := NewClient("api-key", "mailcast.test", "", "", nil)

	assert.False(t, c.SignatureVerificationEnabled())
	_, err := c.VerifyWebhookSignature("ts", "tok", "sig")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func newValidationStub(t *testing.T, isValid bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/address/validate") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if isValid {
			w.Write([]byte(`{"address":"a@b.com","is_valid":true,"result":"deliverable"}`))
		} else {
			w.Write([]byte(`{"address":"bad@invalid","is_valid":false,"result":"undeliverable"}`))
		}
	}))
}

func TestValidateEmail(t *testing.T) {
	valid := newValidationStub(t, true)
	defer valid.Close()

	c := NewClient("api-key", "mailcast.test", "", "", nil)
	c.SetValidationAPIBase(valid.URL + "/v4")
	assert.True(t, c.ValidateEmail(context.Background(), "a@b.com"))

	invalid := newValidationStub(t, false)
	defer invalid.Close()

	c.SetValidationAPIBase(invalid.URL + "/v4")
	assert.False(t, c.ValidateEmail(context.Background(), "bad@invalid"))
}

func TestValidateEmailFailsOpen(t *testing.T) {
	// Unconfigured client never blocks ingestion
	c := NewClient("", "", "", "", nil)
	assert.True(t, c.ValidateEmail(context.Background(), "a@b.com"))

	// Provider outage is treated as valid
	c = NewClient("api-key", "mailcast.test", "", "", nil)
	c.SetValidationAPIBase("http://127.0.0.1:1/v4")
	assert.True(t, c.ValidateEmail(context.Background(), "a@b.com"))
}

func TestGenerateForwardingEmail(t *testing.T) {
	c := NewClient("", "mailcast.test", "", "", nil)

	email, err := c.GenerateForwardingEmail(42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(email, "user.42."))
	assert.True(t, strings.HasSuffix(email, "@mailcast.test"))

	// Two generated addresses never collide
	other, err := c.GenerateForwardingEmail(42)
	require.NoError(t, err)
	assert.NotEqual(t, email, other)
}

func TestGenerateForwardingEmailWithoutDomain(t *testing.T) {
	c := NewClient("", "", "", "", nil)

	_, err := c.GenerateForwardingEmail(42)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
