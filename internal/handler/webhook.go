package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/service"
	"github.com/sakif/commitcast/internal/webhook"
)

// maxWebhookBody caps the delivery size we are willing to read. GitHub
// caps payloads at 25 MB; anything bigger is not a webhook.
const maxWebhookBody = 25 << 20

// WebhookHandler receives GitHub webhook deliveries and drives the
// publish pipeline.
//
// GATE ORDER (each gate is a terminal early exit):
//  1. body present            → 400 Missing payload
//  2. signature valid         → 403
//  3. event type supported    → 400 / 204 for pull_request
//  4. JSON parses             → 400 Invalid payload
//  5. pipeline (fields, user, dedup, publish, persist)
//
// Failures are never retried here — GitHub's own redelivery is the
// retry mechanism, and the dedup check makes redelivery safe.
type WebhookHandler struct {
	verifier *webhook.Verifier
	pipeline *service.WebhookService
	logger   *slog.Logger
}

func NewWebhookHandler(verifier *webhook.Verifier, pipeline *service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		pipeline: pipeline,
		logger:   logger,
	}
}

// HandleGitHub serves POST /webhook/github.
func (h *WebhookHandler) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	// The signature covers the raw bytes — read them before any JSON
	// decoding touches the body.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("webhook: reading request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing payload"})
		return
	}
	if len(body) == 0 {
		h.logger.Warn("webhook: missing payload")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing payload"})
		return
	}

	// Missing header and bad signature both answer 403; they are told
	// apart only in the logs (the verifier logs which gate failed).
	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		h.logger.Warn("webhook: missing signature header")
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Invalid signature"})
		return
	}
	if !h.verifier.Verify(body, signature) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Unauthorized"})
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		h.logger.Warn("webhook: missing event type header")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing event type"})
		return
	}
	if !webhook.SupportedEvent(eventType) {
		h.logger.Info("webhook: unsupported event type", slog.String("event", eventType))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Unsupported event type"})
		return
	}

	// pull_request is acknowledged but intentionally never published.
	if eventType == webhook.EventPullRequest {
		h.logger.Info("webhook: pull request event acknowledged")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ev, err := webhook.ParsePush(body)
	if err != nil {
		h.logger.Warn("webhook: malformed JSON payload", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
		return
	}

	outcome, err := h.pipeline.ProcessPush(r.Context(), ev)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	if outcome.Redundant {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Redundant event"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"linkedin_post_id": outcome.PostID,
	})
}

// writePipelineError translates pipeline errors into the webhook
// response contract. Validation-class failures get specific 4xx
// bodies; publish failures surface as 500 with non-leaking messages
// (the specifics go to the log, GitHub's redelivery UI only needs the
// status).
func (h *WebhookHandler) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		h.logger.Warn("webhook: invalid payload", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})

	case errors.Is(err, apperror.ErrNotFound):
		h.logger.Warn("webhook: no user found", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No user found"})

	case errors.Is(err, apperror.ErrMissingCredentials):
		h.logger.Warn("webhook: user has no LinkedIn link", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "LinkedIn account not linked"})

	case errors.Is(err, apperror.ErrUpstreamAuth):
		h.logger.Error("webhook: linkedin rejected credentials", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to post to LinkedIn"})

	case errors.Is(err, apperror.ErrUpstream):
		h.logger.Error("webhook: linkedin upstream failure", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to post to LinkedIn"})

	case errors.Is(err, apperror.ErrInvalidContent):
		h.logger.Error("webhook: composer rejected content", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to post to LinkedIn"})

	default:
		h.logger.Error("webhook: unexpected pipeline error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
