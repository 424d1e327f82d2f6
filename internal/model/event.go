package model

import "time"

// Event status values derived from the presence of a LinkedIn post ID.
const (
	EventStatusPosted   = "posted"
	EventStatusUnposted = "unposted"
)

// GitHubEvent is the publication record for a single webhook delivery.
//
// One row per (user, repository, commit message) — that tuple is the
// natural duplicate key for the webhook pipeline. The sqlite layer
// enforces it with a UNIQUE index so two concurrent deliveries of the
// same push can never both insert.
//
// LinkedInPostID stays empty when the publish was skipped or degraded;
// it is written exactly once on a successful publish and never updated
// again.
type GitHubEvent struct {
	ID             string    `json:"id"             db:"id"`
	UserID         string    `json:"userId"         db:"user_id"`
	RepoName       string    `json:"repo"           db:"repo_name"`
	CommitMessage  string    `json:"message"        db:"commit_message"`
	CommitURL      string    `json:"url"            db:"commit_url"`
	EventType      string    `json:"eventType"      db:"event_type"` // e.g. "push"
	LinkedInPostID string    `json:"linkedinPostId" db:"linkedin_post_id"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
}

// Status derives the lifecycle status from the LinkedIn post ID.
// There is deliberately no stored status column to drift out of sync.
func (e *GitHubEvent) Status() string {
	if e.LinkedInPostID != "" {
		return EventStatusPosted
	}
	return EventStatusUnposted
}
