// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the credential record linking one GitHub account to one
// (optional) LinkedIn account.
//
// WHY GitHubID int64?
// GitHub user IDs are integers (e.g. 1234567). Using int64 avoids overflow
// for large GitHub account numbers. The UNIQUE constraint on github_id in
// the DB ensures one GitHub account maps to exactly one app account.
//
// The LinkedIn side is optional: both LinkedInID and LinkedInToken stay
// empty until the user completes the LinkedIn link flow, and both are
// cleared when a re-link begins so a failed re-link never leaves stale
// credentials attributed to the wrong member.
//
// We still generate our own internal string ID (xid) rather than tying
// our primary keys to a third-party's numbering scheme.
type User struct {
	ID             string    `json:"id"             db:"id"`
	GitHubID       int64     `json:"githubId"       db:"github_id"`       // GitHub's numeric user ID
	GitHubUsername string    `json:"githubUsername" db:"github_username"` // GitHub login, e.g. "sakif"
	Name           string    `json:"name"           db:"name"`            // Display name (may be empty)
	Email          string    `json:"email"          db:"email"`           // Primary public email (may be empty)
	AvatarURL      string    `json:"avatarUrl"      db:"avatar_url"`      // Profile picture URL
	GitHubToken    string    `json:"-"              db:"github_token"`    // OAuth access token — never serialized
	LinkedInID     string    `json:"linkedinId"     db:"linkedin_id"`     // LinkedIn member ID (empty until linked)
	LinkedInToken  string    `json:"-"              db:"linkedin_token"`  // OAuth access token — never serialized
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// LinkedInLinked reports whether the user has a complete LinkedIn link.
// Both the member ID and the access token must be present — one without
// the other cannot publish and counts as unlinked.
func (u *User) LinkedInLinked() bool {
	return u.LinkedInID != "" && u.LinkedInToken != ""
}
