package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sign produces the exact header GitHub would send for body under secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// =========================================================================
// SIGNATURE VERIFICATION TESTS
// =========================================================================

func TestVerify_ValidSignature(t *testing.T) {
	v := NewVerifier("topsecret", testLogger())
	body := []byte(`{"repository":{"name":"commitcast"}}`)

	if !v.Verify(body, sign("topsecret", body)) {
		t.Error("Verify() = false for a correctly signed body")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier("topsecret", testLogger())
	body := []byte(`{"repository":{"name":"commitcast"}}`)

	if v.Verify(body, sign("differentsecret", body)) {
		t.Error("Verify() = true for a signature made with the wrong secret")
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	v := NewVerifier("topsecret", testLogger())
	original := []byte(`{"n":1}`)
	tampered := []byte(`{"n":2}`)

	if v.Verify(tampered, sign("topsecret", original)) {
		t.Error("Verify() = true for a body that changed after signing")
	}
}

func TestVerify_MissingHeader(t *testing.T) {
	v := NewVerifier("topsecret", testLogger())

	if v.Verify([]byte("body"), "") {
		t.Error("Verify() = true with no signature header")
	}
}

func TestVerify_UnconfiguredSecret(t *testing.T) {
	// With no secret configured, nothing can verify — not even a header
	// signed with an empty key. Fail closed.
	v := NewVerifier("", testLogger())
	body := []byte("body")

	if v.Verify(body, sign("", body)) {
		t.Error("Verify() = true with an unconfigured secret")
	}
}

func TestVerify_MalformedHeader(t *testing.T) {
	v := NewVerifier("topsecret", testLogger())
	body := []byte("body")

	for _, header := range []string{
		"sha1=deadbeef",          // wrong algorithm prefix
		"deadbeef",               // no prefix at all
		"sha256=not-hex-at-all!", // garbage digest
	} {
		if v.Verify(body, header) {
			t.Errorf("Verify() = true for malformed header %q", header)
		}
	}
}

// TestVerify_RawBytesMatter pins the raw-body contract: the same JSON
// value with different whitespace must NOT verify, because the
// signature covers the bytes, not the parsed object.
func TestVerify_RawBytesMatter(t *testing.T) {
	v := NewVerifier("topsecret", testLogger())
	compact := []byte(`{"a":1}`)
	spaced := []byte(`{"a": 1}`)

	if v.Verify(spaced, sign("topsecret", compact)) {
		t.Error("Verify() = true across re-serialized bytes")
	}
}
