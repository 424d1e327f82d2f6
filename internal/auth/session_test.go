package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-session-secret-0123456789"

// =========================================================================
// TOKEN SERVICE TESTS
// =========================================================================

func TestNewTokenService_RejectsShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject a secret under 16 characters")
	}
}

func TestGenerateAndValidate(t *testing.T) {
	ts, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	token, err := ts.Generate(42)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	githubID, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if githubID != 42 {
		t.Errorf("Validate() = %d, want 42", githubID)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	issuer, _ := NewTokenService(testSecret)
	verifier, _ := NewTokenService("a-completely-different-secret")

	token, _ := issuer.Generate(42)
	if _, err := verifier.Validate(token); err == nil {
		t.Fatal("Validate() should reject a token signed with another secret")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts, _ := NewTokenService(testSecret)

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ts.Validate(bad); err == nil {
			t.Errorf("Validate(%q) should fail", bad)
		}
	}
}

// TestValidate_RejectsUnsignedAlg pins the alg-confusion defence: a
// token claiming "none" must never validate, whatever its claims say.
func TestValidate_RejectsUnsignedAlg(t *testing.T) {
	ts, _ := NewTokenService(testSecret)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "42",
		Issuer:  sessionIssuer,
	})
	tokenStr, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building unsigned token: %v", err)
	}

	if _, err := ts.Validate(tokenStr); err == nil {
		t.Fatal("Validate() accepted an alg=none token")
	}
}

func TestValidate_RejectsWrongIssuer(t *testing.T) {
	ts, _ := NewTokenService(testSecret)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenStr, err := other.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ts.Validate(tokenStr); err == nil {
		t.Fatal("Validate() accepted a token from another issuer")
	}
}

func TestValidate_TokenLooksLikeJWT(t *testing.T) {
	ts, _ := NewTokenService(testSecret)
	token, _ := ts.Generate(7)

	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not in header.payload.signature form", token)
	}
}
