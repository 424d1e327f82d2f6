package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/compose"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/service"
	"github.com/sakif/commitcast/internal/webhook"
)

// APIHandler serves the authenticated status/profile endpoints and the
// public post-preview endpoints the frontend uses.
type APIHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAPIHandler(accounts *service.AccountService, logger *slog.Logger) *APIHandler {
	return &APIHandler{accounts: accounts, logger: logger}
}

// HandleHealth serves GET /healthz.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus serves GET /api/github/{githubID}/status.
func (h *APIHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"linked":          user.LinkedInID != "",
		"github_id":       user.GitHubID,
		"github_username": user.GitHubUsername,
		"linkedin_id":     user.LinkedInID,
	})
}

// HandleCommits serves GET /api/github/{githubID}/commits.
func (h *APIHandler) HandleCommits(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}

	events, err := h.accounts.Commits(r.Context(), user.GitHubID)
	if err != nil {
		h.logger.Error("api: listing commits", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	commits := make([]map[string]any, 0, len(events))
	for _, e := range events {
		commits = append(commits, map[string]any{
			"id":      e.ID,
			"repo":    e.RepoName,
			"message": e.CommitMessage,
			"url":     e.CommitURL,
			"status":  e.Status(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

// HandleProfile serves GET /api/get_user_profile for the session user.
func (h *APIHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	githubID, ok := auth.GitHubIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "GitHub user ID not found"})
		return
	}

	user, err := h.accounts.Profile(r.Context(), githubID)
	if err != nil {
		h.logger.Error("api: loading profile", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"linkedin_connected": user.LinkedInLinked(),
		"github_id":          user.GitHubID,
		"github_username":    user.GitHubUsername,
		"linkedin_id":        user.LinkedInID,
		"linkedin_linked":    user.LinkedInLinked(),
	})
}

// HandleManualLink serves POST /api/github/{githubID}/link_linkedin —
// the test/debug path that attaches LinkedIn credentials without going
// through OAuth.
func (h *APIHandler) HandleManualLink(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}

	var body struct {
		LinkedInToken string `json:"linkedin_token"`
		LinkedInID    string `json:"linkedin_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
		return
	}
	if body.LinkedInToken == "" || body.LinkedInID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing LinkedIn token or ID"})
		return
	}

	if err := h.accounts.ManualLink(r.Context(), user.GitHubID, body.LinkedInID, body.LinkedInToken); err != nil {
		h.logger.Error("api: manual link failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "LinkedIn account linked successfully",
	})
}

// HandlePreviewPost serves POST /api/preview_linkedin_post: run the
// composer over a push payload without publishing anything.
func (h *APIHandler) HandlePreviewPost(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
		return
	}

	ev, err := webhook.ParsePush(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
		return
	}

	preview, err := compose.FromPush(ev)
	if err != nil {
		// Composer failures are the caller's problem on the preview
		// path: a bad URL in the pasted payload is a 400, not a 500.
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"preview": preview})
}

// HandlePreviewDigest serves POST /api/preview_linkedin_digest.
//
// Request body: {"events": [...], "group_by_date": bool, "as_string": bool}.
// as_string selects the flattened multi-line rendering; otherwise the
// grouped structure comes back as JSON.
func (h *APIHandler) HandlePreviewDigest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events      []compose.DigestEvent `json:"events"`
		GroupByDate bool                  `json:"group_by_date"`
		AsString    bool                  `json:"as_string"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Events == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
		return
	}

	groups := compose.Digest(body.Events, compose.DigestOptions{GroupByDate: body.GroupByDate})

	if body.AsString {
		writeJSON(w, http.StatusOK, map[string]string{"preview": compose.RenderDigest(groups)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": groups})
}

// authorizedUser loads the session user and verifies the {githubID}
// path parameter names the same account. The session cookie is the
// authority; a mismatched path is a 403, not a lookup of someone
// else's data.
func (h *APIHandler) authorizedUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	githubID, authed := auth.GitHubIDFromContext(r.Context())
	if !authed {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return nil, false
	}

	if pathID := chi.URLParam(r, "githubID"); pathID != "" {
		parsed, err := strconv.ParseInt(pathID, 10, 64)
		if err != nil || parsed != githubID {
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Unauthorized or invalid user"})
			return nil, false
		}
	}

	user, err := h.accounts.Profile(r.Context(), githubID)
	if err != nil {
		h.logger.Error("api: loading session user", slog.String("error", err.Error()))
		writeError(w, err)
		return nil, false
	}

	return user, true
}

func readJSONBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
