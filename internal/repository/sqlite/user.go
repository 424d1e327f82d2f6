package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, github_id, github_username, name, email, avatar_url,
	github_token, linkedin_id, linkedin_token, created_at, updated_at`

// Upsert inserts or updates a user based on their GitHub ID.
//
// First GitHub login → INSERT with a fresh xid; subsequent logins →
// UPDATE the profile fields and the GitHub token (the user may have
// changed their login/email on GitHub, and GitHub may have rotated the
// token). The LinkedIn columns are deliberately untouched here — only
// the link flow writes those.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	// Keep the existing internal ID when the GitHub account is already
	// known.
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users
			 SET github_username = ?, name = ?, email = ?, avatar_url = ?,
			     github_token = ?, updated_at = ?
			 WHERE id = ?`,
			user.GitHubUsername,
			user.Name,
			user.Email,
			user.AvatarURL,
			user.GitHubToken,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
	} else {
		now := time.Now()
		user.ID = xid.New().String()
		user.CreatedAt = now
		user.UpdatedAt = now

		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (id, github_id, github_username, name, email,
			                    avatar_url, github_token, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID,
			user.GitHubID,
			user.GitHubUsername,
			user.Name,
			user.Email,
			user.AvatarURL,
			user.GitHubToken,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
		}
	}

	return nil
}

// GetByInternalID retrieves a user by the internal xid primary key.
func (db *DB) GetByInternalID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserBy(ctx, "id", id, id)
}

// GetByGitHubID retrieves a user by their GitHub numeric ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUserBy(ctx, "github_id", githubID, strconv.FormatInt(githubID, 10))
}

// GetByGitHubUsername retrieves a user by their GitHub login.
// Used by the webhook pipeline when the payload only carries pusher.name.
func (db *DB) GetByGitHubUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserBy(ctx, "github_username", username, username)
}

func (db *DB) getUserBy(ctx context.Context, column string, value any, display string) (*model.User, error) {
	var (
		u             model.User
		linkedinID    sql.NullString
		linkedinToken sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&u.ID,
		&u.GitHubID,
		&u.GitHubUsername,
		&u.Name,
		&u.Email,
		&u.AvatarURL,
		&u.GitHubToken,
		&linkedinID,
		&linkedinToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", display)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %s: %w", column, display, err)
	}

	u.LinkedInID = linkedinID.String
	u.LinkedInToken = linkedinToken.String
	return &u, nil
}

// SetLinkedIn stores the LinkedIn member ID and access token for a user.
func (db *DB) SetLinkedIn(ctx context.Context, userID, linkedinID, linkedinToken string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET linkedin_id = ?, linkedin_token = ?, updated_at = ?
		 WHERE id = ?`,
		linkedinID, linkedinToken, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting LinkedIn link for user %s: %w", userID, err)
	}
	return requireRowAffected(res, "user", userID)
}

// ClearLinkedIn removes the LinkedIn link (both columns back to NULL).
// The user row itself is never deleted by this flow.
func (db *DB) ClearLinkedIn(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET linkedin_id = NULL, linkedin_token = NULL, updated_at = ?
		 WHERE id = ?`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing LinkedIn link for user %s: %w", userID, err)
	}
	return requireRowAffected(res, "user", userID)
}

// requireRowAffected turns an UPDATE that matched nothing into a
// not-found error, so callers don't silently "succeed" against a
// missing row.
func requireRowAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
