// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/commitcast/internal/model"
)

// UserRepository is the credential store: one row per GitHub identity,
// with an optional LinkedIn identity attached.
type UserRepository interface {
	// Upsert creates the user on first GitHub login and updates the
	// profile fields + GitHub token on subsequent logins, keyed by
	// GitHubID. Fills ID/CreatedAt/UpdatedAt on the passed struct.
	Upsert(ctx context.Context, user *model.User) error

	GetByInternalID(ctx context.Context, id string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	GetByGitHubUsername(ctx context.Context, username string) (*model.User, error)

	// SetLinkedIn persists the LinkedIn member ID and access token for
	// the user identified by internal ID.
	SetLinkedIn(ctx context.Context, userID, linkedinID, linkedinToken string) error

	// ClearLinkedIn removes the LinkedIn link. Called at the start of a
	// (re-)link flow and on explicit disconnect; the user row survives.
	ClearLinkedIn(ctx context.Context, userID string) error
}

// EventRepository owns the publication records.
type EventRepository interface {
	// Create inserts a new event row. Returns apperror.ErrConflict when
	// an event with the same (user, repo, commit message) already
	// exists — the caller treats that as a redundant delivery, not a
	// failure.
	Create(ctx context.Context, event *model.GitHubEvent) error

	// Exists reports whether an event with the given dedup tuple is
	// already recorded.
	Exists(ctx context.Context, userID, repoName, commitMessage string) (bool, error)

	ListByUser(ctx context.Context, userID string) ([]model.GitHubEvent, error)
}
