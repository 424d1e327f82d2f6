// Package service holds the business logic between the HTTP handlers
// and the repositories/providers: the webhook → publish pipeline and
// the account (OAuth) flows.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v66/github"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/linkedin"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
	"github.com/sakif/commitcast/internal/webhook"
)

// Publisher is what the pipeline needs from the LinkedIn side. The
// concrete *linkedin.Publisher satisfies it; tests substitute a fake to
// count outbound calls.
type Publisher interface {
	Publish(ctx context.Context, user *model.User, ev *github.PushEvent) (*linkedin.PublishResult, error)
}

// PushOutcome is the terminal result of a processed push event.
type PushOutcome struct {
	// Redundant means an event with the same (user, repo, commit
	// message) already existed — nothing was published or written.
	Redundant bool

	// PostID is the LinkedIn post created for this event. Empty when
	// Redundant, or when the publish degraded on the documented
	// best-effort path.
	PostID string

	Event *model.GitHubEvent
}

// WebhookService orchestrates one webhook delivery:
// payload facts → user lookup → dedup check → publish → persist.
type WebhookService struct {
	users     repository.UserRepository
	events    repository.EventRepository
	publisher Publisher
	logger    *slog.Logger
}

func NewWebhookService(
	users repository.UserRepository,
	events repository.EventRepository,
	publisher Publisher,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		users:     users,
		events:    events,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessPush runs the pipeline for an already-verified, already-parsed
// push event.
//
// Error contract (the handler maps these to HTTP):
//   - apperror.ErrValidation   → required payload fields missing
//   - apperror.ErrNotFound     → no linked user for the actor (never
//     auto-provisioned from webhook traffic)
//   - publisher errors pass through unchanged
//
// Dedup runs before any publish attempt, and the unique index on the
// events table backs it up: if a concurrent identical delivery wins the
// insert race, the resulting conflict is reported as redundant, not as
// a failure — the event was published exactly once either way.
func (s *WebhookService) ProcessPush(ctx context.Context, ev *github.PushEvent) (*PushOutcome, error) {
	facts := webhook.ExtractFacts(ev)
	if !facts.Complete() {
		return nil, apperror.ValidationFailed("payload", "payload is missing required fields")
	}

	user, err := s.resolveUser(ctx, facts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("webhook push resolved",
		slog.Int64("githubID", user.GitHubID),
		slog.String("repo", facts.RepoName),
	)

	exists, err := s.events.Exists(ctx, user.ID, facts.RepoName, facts.CommitMessage)
	if err != nil {
		return nil, fmt.Errorf("service/webhook: dedup check: %w", err)
	}
	if exists {
		s.logger.Info("redundant event detected, skipping publish",
			slog.String("userID", user.ID),
			slog.String("repo", facts.RepoName),
		)
		return &PushOutcome{Redundant: true}, nil
	}

	result, err := s.publisher.Publish(ctx, user, ev)
	if err != nil {
		return nil, err
	}

	event := &model.GitHubEvent{
		UserID:         user.ID,
		RepoName:       facts.RepoName,
		CommitMessage:  facts.CommitMessage,
		CommitURL:      facts.CommitURL,
		EventType:      webhook.EventPush,
		LinkedInPostID: result.PostID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// A concurrent identical delivery inserted first. The post
			// may have gone out twice at LinkedIn's door in this narrow
			// window, but our record stays single and the caller sees
			// the same redundant answer GitHub's redelivery would.
			s.logger.Warn("concurrent duplicate event, insert lost the race",
				slog.String("userID", user.ID),
				slog.String("repo", facts.RepoName),
			)
			return &PushOutcome{Redundant: true}, nil
		}
		return nil, fmt.Errorf("service/webhook: persisting event: %w", err)
	}

	return &PushOutcome{PostID: result.PostID, Event: event}, nil
}

// resolveUser looks up the credential record for the push actor:
// repository-owner ID preferred, pusher name as fallback. Users are
// never created from webhook traffic — they must already exist via the
// GitHub OAuth flow.
func (s *WebhookService) resolveUser(ctx context.Context, facts webhook.PushFacts) (*model.User, error) {
	if facts.OwnerID != 0 {
		user, err := s.users.GetByGitHubID(ctx, facts.OwnerID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/webhook: looking up user %d: %w", facts.OwnerID, err)
		}
		// fall through to the pusher-name lookup
	}

	if facts.PusherName != "" {
		user, err := s.users.GetByGitHubUsername(ctx, facts.PusherName)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/webhook: looking up user %q: %w", facts.PusherName, err)
		}
	}

	return nil, apperror.NotFound("user", facts.ActorLabel())
}
