// Package webhook handles the inbound GitHub side of the pipeline:
// authenticating a delivery and pulling the fields we act on out of the
// push payload.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Verifier checks the X-Hub-Signature-256 header GitHub attaches to
// every webhook delivery.
type Verifier struct {
	secret []byte
	logger *slog.Logger
}

func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

// Verify reports whether signatureHeader is a valid HMAC-SHA256 of body
// under the shared webhook secret, in GitHub's "sha256=<hex>" format.
//
// body MUST be the raw request bytes. Verifying a re-serialized JSON
// object breaks on field-order and whitespace differences — the
// signature covers the exact bytes GitHub sent.
//
// Returns false when the header is missing or the secret is unset; the
// comparison itself is constant-time (hmac.Equal).
func (v *Verifier) Verify(body []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		v.logger.Warn("webhook signature check failed: missing signature header")
		return false
	}
	if len(v.secret) == 0 {
		v.logger.Warn("webhook signature check failed: webhook secret is not configured")
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		v.logger.Warn("webhook signature check failed: digest mismatch")
		return false
	}
	return true
}
