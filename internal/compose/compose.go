// Package compose renders the human-readable LinkedIn post text from
// GitHub event data. It never talks to the network — the publisher and
// the preview endpoints both call into it.
package compose

import (
	"fmt"
	"net/url"

	"github.com/google/go-github/v66/github"

	"github.com/sakif/commitcast/internal/apperror"
)

// Fallback values used when a push payload is missing a field. These
// are part of the composer's contract (tests pin them): an empty
// payload still composes, it just reads generically.
const (
	FallbackRepo    = "a GitHub repo"
	FallbackRepoURL = "https://github.com"
	FallbackMessage = "made an update"
	FallbackAuthor  = "Someone"
)

// FromPush renders the single-event post for a push payload.
//
// The wording is a product decision; the contract is the four semantic
// fields (author, repo, commit message, link) and their fallbacks. The
// repository URL is normalized to carry an explicit scheme — LinkedIn
// rejects posts with malformed links, so an URL that still has no
// scheme or host after normalization fails with ErrInvalidContent
// rather than producing a post the API would bounce.
func FromPush(ev *github.PushEvent) (string, error) {
	repo := ev.GetRepo().GetName()
	if repo == "" {
		repo = FallbackRepo
	}

	rawURL := ev.GetRepo().GetHTMLURL()
	if rawURL == "" {
		rawURL = FallbackRepoURL
	}
	repoURL, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	message := ev.GetHeadCommit().GetMessage()
	if message == "" {
		message = FallbackMessage
	}

	author := ev.GetHeadCommit().GetAuthor().GetName()
	if author == "" {
		author = FallbackAuthor
	}

	return fmt.Sprintf(
		"🚀 %s just pushed to %s!\n\n"+
			"💬 Commit message: %q\n\n"+
			"🔗 Check it out: %s\n\n"+
			"#buildinpublic #opensource",
		author, repo, message, repoURL,
	), nil
}

// normalizeURL ensures the link carries an explicit scheme, defaulting
// to https when the payload omitted it (e.g. "github.com/foo/bar").
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperror.InvalidContent(fmt.Sprintf("repository URL %q is not parseable", raw))
	}

	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", apperror.InvalidContent(fmt.Sprintf("repository URL %q is not parseable", raw))
		}
	}

	if u.Scheme == "" || u.Host == "" {
		return "", apperror.InvalidContent(fmt.Sprintf("repository URL %q has no usable scheme or host", raw))
	}

	return u.String(), nil
}
