// Package linkedin sends the authenticated UGC-post request that turns
// a composed message into a LinkedIn post.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/compose"
	"github.com/sakif/commitcast/internal/model"
)

// MemberURNPrefix is the canonical author URN prefix for the UGC Posts
// API surface this service targets. Historical variants flip-flopped
// between urn:li:member: and urn:li:person:; member is what our stored
// data uses, so member it is — everywhere, including tests.
const MemberURNPrefix = "urn:li:member:"

const (
	defaultBaseURL     = "https://api.linkedin.com"
	restliVersion      = "2.0.0"
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// PublishResult is the outcome of a successful (or best-effort) publish.
// PostID is empty only on the documented degrade path: an unexpected
// non-2xx from LinkedIn that is neither 401 nor 5xx.
type PublishResult struct {
	PostID string
}

// TokenRefresher can obtain a fresh LinkedIn access token for a user
// whose stored token was rejected. Optional — when nil, a 401 from
// LinkedIn is terminal for the publish attempt.
type TokenRefresher interface {
	RefreshLinkedInToken(ctx context.Context, user *model.User) (string, error)
}

// Publisher sends UGC posts on behalf of linked users.
type Publisher struct {
	baseURL     string
	client      *http.Client
	logger      *slog.Logger
	refresher   TokenRefresher
	maxAttempts int
	retryDelay  time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBaseURL points the publisher at a different API host (tests).
func WithBaseURL(u string) Option {
	return func(p *Publisher) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithTokenRefresher enables the refresh-then-retry path on 401.
func WithTokenRefresher(r TokenRefresher) Option {
	return func(p *Publisher) { p.refresher = r }
}

// WithRetry overrides the bounded-retry policy for upstream errors.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(p *Publisher) {
		p.maxAttempts = maxAttempts
		p.retryDelay = delay
	}
}

func NewPublisher(logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		baseURL: defaultBaseURL,
		// Bounded timeout — the legacy system had none and an unbounded
		// hang on LinkedIn stalls the whole webhook response.
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MemberURN normalizes a stored LinkedIn member ID into the author URN
// the API expects. IDs that already carry an urn:li: prefix pass
// through untouched.
func MemberURN(linkedinID string) string {
	if strings.HasPrefix(linkedinID, "urn:li:") {
		return linkedinID
	}
	return MemberURNPrefix + linkedinID
}

// Publish composes the post text from the raw push payload and creates
// the UGC post as the given user.
//
// Preconditions: the user must have both a LinkedIn token and a member
// ID; otherwise ErrMissingCredentials, with zero outbound calls.
//
// Error contract:
//   - 401 from LinkedIn → ErrUpstreamAuth (one refresh-and-retry when a
//     TokenRefresher is configured; never retried after the refresh
//     itself fails)
//   - 5xx/timeouts → ErrUpstream, retried up to maxAttempts with a
//     fixed delay
//   - any other non-2xx → logged as unexpected, returned as a success
//     with an empty PostID (best-effort by design)
func (p *Publisher) Publish(ctx context.Context, user *model.User, ev *github.PushEvent) (*PublishResult, error) {
	if !user.LinkedInLinked() {
		return nil, apperror.MissingCredentials("LinkedIn account not linked")
	}

	// Compose from the raw payload, not the already-extracted strings,
	// so author and URL context make it into the post.
	text, err := compose.FromPush(ev)
	if err != nil {
		return nil, err
	}

	token := user.LinkedInToken
	urn := MemberURN(user.LinkedInID)
	refreshed := false

	for attempt := 1; ; attempt++ {
		result, err := p.post(ctx, token, urn, text)
		if err == nil {
			return result, nil
		}

		switch {
		case errors.Is(err, apperror.ErrUpstreamAuth) && p.refresher != nil && !refreshed:
			refreshed = true
			newToken, refreshErr := p.refresher.RefreshLinkedInToken(ctx, user)
			if refreshErr != nil {
				p.logger.Warn("linkedin token refresh failed",
					slog.String("userID", user.ID),
					slog.String("error", refreshErr.Error()),
				)
				return nil, err
			}
			token = newToken
			// Retry immediately with the fresh token.

		case errors.Is(err, apperror.ErrUpstream) && attempt < p.maxAttempts:
			p.logger.Warn("linkedin publish failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return nil, apperror.Upstream("linkedin", ctx.Err().Error())
			}

		default:
			return nil, err
		}
	}
}

// ugcPost is the request body for POST /v2/ugcPosts.
type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type shareContent struct {
	ShareCommentary    textValue `json:"shareCommentary"`
	ShareMediaCategory string    `json:"shareMediaCategory"`
}

type textValue struct {
	Text string `json:"text"`
}

func (p *Publisher) post(ctx context.Context, token, authorURN, text string) (*PublishResult, error) {
	body := ugcPost{
		Author:         authorURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]shareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    textValue{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("linkedin: encoding post body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("linkedin: building publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		// Timeouts and transport failures get the same retry policy as
		// a 5xx.
		return nil, apperror.Upstream("linkedin", fmt.Sprintf("publish request failed: %v", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var created struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return nil, fmt.Errorf("linkedin: decoding publish response: %w", err)
		}
		p.logger.Info("linkedin post created",
			slog.String("postID", created.ID),
			slog.String("author", authorURN),
		)
		return &PublishResult{PostID: created.ID}, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperror.UpstreamAuth("linkedin", "publish returned 401 (token invalid or expired)")

	case resp.StatusCode >= 500:
		return nil, apperror.Upstream("linkedin", fmt.Sprintf("publish returned status %d", resp.StatusCode))

	default:
		// Unexpected non-2xx that is neither an auth failure nor a
		// server error: log and degrade instead of failing the webhook.
		p.logger.Warn("linkedin publish returned unexpected status",
			slog.Int("status", resp.StatusCode),
			slog.String("author", authorURN),
		)
		return &PublishResult{}, nil
	}
}
