// Package auth contains the OAuth providers (GitHub login, LinkedIn
// link), the session token service, and the anti-CSRF state store.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /auth/github → redirected to GitHub
//  2. GitHub calls back /auth/github/callback with a code
//  3. Server exchanges code for the GitHub profile, upserts the user
//  4. Server issues a signed session cookie carrying the GitHub ID
//  5. /auth/linkedin (session required) redirects to LinkedIn with an
//     opaque state; the callback stores the LinkedIn token + member ID
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/commitcast/internal/apperror"
)

// GitHubUser is the portion of the GitHub /user API response we care
// about. GitHub returns a much larger object — we only unmarshal the
// fields we persist.
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID — stable, never changes
	Login     string `json:"login"`      // GitHub username
	Name      string `json:"name"`       // Display name (may be empty)
	Email     string `json:"email"`      // Primary email (empty if hidden in GitHub settings)
	AvatarURL string `json:"avatar_url"` // Profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization
// Code flow. The code-for-token exchange happens server-to-server using
// the client secret; the access token never touches the browser.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
	client  *http.Client
}

// NewGitHubProvider creates a GitHubProvider with the given OAuth app
// credentials. callbackURL must match the "Authorization callback URL"
// configured on the GitHub OAuth app exactly.
//
// Scope "repo" mirrors what the webhook integration was registered
// with — the token is stored so later features can read repository
// metadata on the user's behalf.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"repo"},
			Endpoint:     github.Endpoint,
		},
		userURL: "https://api.github.com/user",
		// Outbound calls get a bounded timeout — an unbounded hang on a
		// third-party API would pin the handling goroutine forever.
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthURL returns the GitHub authorization URL for the given anti-CSRF
// state value.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for
// the user's GitHub profile plus the access token.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. Use the token to call GitHub's /user endpoint
//  3. Unmarshal the response into a GitHubUser
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, string, error) {
	// Route the oauth2 library through our timeout-bounded client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", apperror.UpstreamAuth("github", fmt.Sprintf("exchanging OAuth code: %v", err))
	}
	if oauthToken.AccessToken == "" {
		return nil, "", apperror.UpstreamAuth("github", "token response contained no access_token")
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// Authorization header to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("auth: building GitHub /user request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", apperror.Upstream("github", fmt.Sprintf("calling /user API: %v", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, "", apperror.UpstreamAuth("github", "/user API returned 401")
	case resp.StatusCode != http.StatusOK:
		return nil, "", apperror.Upstream("github", fmt.Sprintf("/user API returned status %d", resp.StatusCode))
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, "", fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, "", fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, oauthToken.AccessToken, nil
}

// SetUserURL overrides the GitHub /user endpoint. Tests point this at an
// httptest server.
func (p *GitHubProvider) SetUserURL(u string) { p.userURL = u }

// SetTokenURL overrides the token-exchange endpoint for tests.
func (p *GitHubProvider) SetTokenURL(u string) { p.config.Endpoint.TokenURL = u }
