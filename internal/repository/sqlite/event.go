package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// compile-time check that *DB implements repository.EventRepository
var _ repository.EventRepository = (*DB)(nil)

// Create inserts a new publication record.
//
// The dedup race: two identical webhook deliveries can both pass the
// Exists check before either inserts. The unique index
// idx_events_dedup is the authority — when the second insert trips it,
// we return apperror.ErrConflict and the pipeline answers "Redundant
// event" instead of crashing or double-publishing.
func (db *DB) Create(ctx context.Context, event *model.GitHubEvent) error {
	if event.UserID == "" {
		return apperror.ValidationFailed("userId", "event must reference a user")
	}
	if event.EventType == "" {
		event.EventType = "push"
	}

	event.ID = xid.New().String()
	event.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO github_events (id, user_id, repo_name, commit_message,
		                            commit_url, event_type, linkedin_post_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		event.RepoName,
		event.CommitMessage,
		event.CommitURL,
		event.EventType,
		event.LinkedInPostID,
		event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("event", event.RepoName)
		}
		return fmt.Errorf("sqlite: inserting event for user %s: %w", event.UserID, err)
	}

	return nil
}

// Exists reports whether an event with the same (user, repo, commit
// message) tuple is already recorded.
func (db *DB) Exists(ctx context.Context, userID, repoName, commitMessage string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM github_events
		 WHERE user_id = ? AND repo_name = ? AND commit_message = ?`,
		userID, repoName, commitMessage,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking for existing event: %w", err)
	}
	return count > 0, nil
}

// ListByUser returns all publication records for a user, newest first.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.GitHubEvent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, repo_name, commit_message, commit_url,
		        event_type, linkedin_post_id, created_at
		 FROM github_events WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events for user %s: %w", userID, err)
	}
	defer rows.Close()

	var events []model.GitHubEvent
	for rows.Next() {
		var e model.GitHubEvent
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.RepoName,
			&e.CommitMessage,
			&e.CommitURL,
			&e.EventType,
			&e.LinkedInPostID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating event rows: %w", err)
	}

	return events, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure (either on a plain unique index or a primary key).
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}
