package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/sakif/commitcast/internal/apperror"
)

// LinkedInToken is the result of the code exchange: the access token we
// publish with, plus the raw OIDC id_token when LinkedIn includes one.
type LinkedInToken struct {
	AccessToken string
	IDToken     string // may be empty
}

// LinkedInProvider wraps golang.org/x/oauth2 for LinkedIn's
// Authorization Code flow and resolves the member ID we need for the
// post author URN.
type LinkedInProvider struct {
	config      *oauth2.Config
	userinfoURL string
	client      *http.Client
}

// NewLinkedInProvider creates a LinkedInProvider. redirectURI must match
// the redirect URL registered on the LinkedIn developer app.
//
// Scope w_member_social is the single scope the UGC post API needs.
func NewLinkedInProvider(clientID, clientSecret, redirectURI string) *LinkedInProvider {
	return &LinkedInProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"w_member_social"},
			Endpoint:     linkedin.Endpoint,
		},
		userinfoURL: "https://api.linkedin.com/v2/userinfo",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthURL returns the LinkedIn authorization URL for the given state.
//
// The state MUST be an opaque random token issued by the StateStore and
// bound server-side to the initiating GitHub user. Earlier versions of
// this system passed the raw GitHub ID here, which let an attacker
// attach their LinkedIn account to a victim's record — don't bring that
// back.
func (p *LinkedInProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for an access token (and the
// id_token, when present in the token response).
func (p *LinkedInProvider) Exchange(ctx context.Context, code string) (*LinkedInToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.UpstreamAuth("linkedin", fmt.Sprintf("exchanging OAuth code: %v", err))
	}
	if tok.AccessToken == "" {
		return nil, apperror.UpstreamAuth("linkedin", "token response contained no access_token")
	}

	lt := &LinkedInToken{AccessToken: tok.AccessToken}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		lt.IDToken = idToken
	}
	return lt, nil
}

// ResolveMemberID returns the LinkedIn member ID for the token.
//
// Preference order:
//  1. The "sub" claim of the OIDC id_token, when one was returned.
//  2. GET /v2/userinfo with the access token.
//
// KNOWN LIMITATION: the id_token signature is NOT verified. LinkedIn
// does not publish a verifiable key for this flow, so the token is
// decoded unverified — same trust level as the userinfo fallback, which
// rides on the access token alone. If LinkedIn ever exposes a JWKS for
// this product, verify the signature and the aud/iss claims here.
func (p *LinkedInProvider) ResolveMemberID(ctx context.Context, token *LinkedInToken) (string, error) {
	if token.IDToken != "" {
		if sub := subjectFromIDToken(token.IDToken); sub != "" {
			return sub, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("auth: building LinkedIn userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperror.Upstream("linkedin", fmt.Sprintf("calling userinfo: %v", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", apperror.UpstreamAuth("linkedin", "userinfo returned 401")
	case resp.StatusCode != http.StatusOK:
		return "", apperror.Upstream("linkedin", fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	}

	var info struct {
		Sub string `json:"sub"`
		ID  string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("auth: decoding LinkedIn userinfo response: %w", err)
	}

	memberID := info.Sub
	if memberID == "" {
		memberID = info.ID
	}
	if memberID == "" {
		return "", fmt.Errorf("auth: LinkedIn userinfo carried no member identifier")
	}
	return memberID, nil
}

// subjectFromIDToken decodes the id_token WITHOUT verifying its
// signature (see ResolveMemberID) and returns the "sub" claim, or ""
// when the token is unparseable.
func subjectFromIDToken(idToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// SetUserinfoURL overrides the userinfo endpoint for tests.
func (p *LinkedInProvider) SetUserinfoURL(u string) { p.userinfoURL = u }

// SetTokenURL overrides the token-exchange endpoint for tests.
func (p *LinkedInProvider) SetTokenURL(u string) { p.config.Endpoint.TokenURL = u }
