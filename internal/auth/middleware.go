package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this
// package. A package-private key type means only this package can read
// or write the GitHub ID in a request context — no collisions with
// other packages' keys.
type contextKey string

const githubIDKey contextKey = "githubID"

// RequireAuth is a middleware that enforces an authenticated GitHub
// session on protected routes.
//
// It reads the session JWT from the HttpOnly cookie, validates it, and
// stores the GitHub ID in the request context. Missing or invalid
// session → 401 and the chain stops.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			githubID, err := extractGitHubID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"Authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), githubIDKey, githubID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GitHubIDFromContext retrieves the authenticated GitHub ID from the
// request context. Returns (0, false) on anonymous requests.
func GitHubIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(githubIDKey).(int64)
	return id, ok && id != 0
}

func extractGitHubID(r *http.Request, tokens *TokenService) (int64, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return 0, err
	}
	return tokens.Validate(cookie.Value)
}
