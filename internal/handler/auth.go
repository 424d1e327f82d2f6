package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/service"
)

// AuthHandler manages the two OAuth flows:
//
//   - HandleGitHubLogin / HandleGitHubCallback — sign the user in with
//     GitHub and issue the session cookie
//   - HandleLinkedInBegin / HandleLinkedInCallback — attach a LinkedIn
//     account to the authenticated GitHub user
type AuthHandler struct {
	github        *auth.GitHubProvider
	accounts      *service.AccountService
	frontendURL   string
	secureCookies bool // false only in local development over plain HTTP
	testingMode   bool
	logger        *slog.Logger
}

func NewAuthHandler(
	github *auth.GitHubProvider,
	accounts *service.AccountService,
	frontendURL string,
	secureCookies bool,
	testingMode bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		github:        github,
		accounts:      accounts,
		frontendURL:   frontendURL,
		secureCookies: secureCookies,
		testingMode:   testingMode,
		logger:        logger,
	}
}

// HandleGitHubLogin serves GET /auth/github: redirect the browser to
// GitHub's authorization page.
//
// The random state goes into a short-lived cookie; the callback checks
// it against the query parameter. Same CSRF defence as the LinkedIn
// flow, just cookie-carried because no user exists yet to bind a
// server-side state to.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback serves GET /auth/github/callback?code=...&state=...
//
// FLOW:
//  1. Validate the state cookie (CSRF check)
//  2. Exchange the code for the GitHub profile + access token
//  3. Upsert the user and issue the session cookie
//  4. Redirect into the frontend with the GitHub ID attached
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("github callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, h.frontendURL+"/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code from GitHub", http.StatusBadRequest)
		return
	}

	ghUser, accessToken, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser, accessToken)
	if err != nil {
		h.logger.Error("github callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, result.Token)

	// The frontend reads the GitHub ID from the query to bootstrap its
	// state; the cookie is what actually authenticates API calls.
	redirect := fmt.Sprintf("%s/?github_user_id=%d", h.frontendURL, result.User.GitHubID)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// HandleLinkedInBegin serves GET /auth/linkedin (session required):
// clear any existing link, mint an opaque state bound to this user, and
// redirect to LinkedIn's authorization page.
func (h *AuthHandler) HandleLinkedInBegin(w http.ResponseWriter, r *http.Request) {
	githubID, ok := auth.GitHubIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "GitHub user ID not found"})
		return
	}

	authURL, err := h.accounts.BeginLinkedInLink(r.Context(), githubID)
	if err != nil {
		h.logger.Error("linkedin begin: failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleLinkedInCallback serves GET /auth/linkedin/callback?code=...&state=...
func (h *AuthHandler) HandleLinkedInCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("linkedin callback: OAuth error",
			slog.String("error", errParam),
		)
		http.Error(w, "LinkedIn OAuth error: "+url.QueryEscape(errParam), http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		h.logger.Warn("linkedin callback: missing code or state")
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.CompleteLinkedInLink(r.Context(), state, code)
	if err != nil {
		h.logger.Error("linkedin callback: link failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("linkedin callback: link complete",
		slog.Int64("githubID", user.GitHubID),
		slog.String("linkedinID", user.LinkedInID),
	)

	if h.testingMode {
		// Tests assert on the body; production users get the redirect.
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "LinkedIn access token and ID stored successfully",
		})
		return
	}

	http.Redirect(w, r, h.frontendURL+"/success", http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	// HttpOnly + Strict: JavaScript can't read the session and the
	// browser won't attach it to cross-site requests.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int((24 * 60 * 60)),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
