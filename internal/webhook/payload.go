package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/go-github/v66/github"
)

// Supported X-GitHub-Event values. pull_request is accepted at the HTTP
// layer (acknowledged with 204) but never reaches the publish pipeline.
const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// SupportedEvent reports whether we recognise the event type at all.
func SupportedEvent(eventType string) bool {
	return eventType == EventPush || eventType == EventPullRequest
}

// ParsePush decodes the raw delivery body into go-github's PushEvent.
// Malformed JSON is the caller's 400.
func ParsePush(raw []byte) (*github.PushEvent, error) {
	var ev github.PushEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("webhook: decoding push payload: %w", err)
	}
	return &ev, nil
}

// PushFacts are the fields the pipeline acts on, pulled out of the
// (deeply pointer-y) go-github payload once so the rest of the code
// works with plain values.
type PushFacts struct {
	RepoName      string
	CommitMessage string
	CommitURL     string
	OwnerID       int64  // repository.owner.id — preferred actor identifier
	PusherName    string // pusher.name — fallback actor identifier
}

// ExtractFacts reads the required fields from a push event. The Get*
// accessors are nil-safe, so absent substructures simply yield zero
// values here; Complete() decides whether that is acceptable.
func ExtractFacts(ev *github.PushEvent) PushFacts {
	return PushFacts{
		RepoName:      ev.GetRepo().GetName(),
		CommitMessage: ev.GetHeadCommit().GetMessage(),
		CommitURL:     ev.GetHeadCommit().GetURL(),
		OwnerID:       ev.GetRepo().GetOwner().GetID(),
		PusherName:    ev.GetPusher().GetName(),
	}
}

// Complete reports whether the facts carry everything the pipeline
// requires: a repository name, a commit message, and at least one actor
// identifier.
func (f PushFacts) Complete() bool {
	return f.RepoName != "" && f.CommitMessage != "" && f.HasActor()
}

// HasActor reports whether either actor identifier is present.
func (f PushFacts) HasActor() bool {
	return f.OwnerID != 0 || f.PusherName != ""
}

// ActorLabel renders the actor identifier for logs and error messages:
// the owner ID when present, the pusher name otherwise.
func (f PushFacts) ActorLabel() string {
	if f.OwnerID != 0 {
		return strconv.FormatInt(f.OwnerID, 10)
	}
	return f.PusherName
}
