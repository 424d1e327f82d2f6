package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-github/v66/github"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/linkedin"
	"github.com/sakif/commitcast/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory fakes: the pipeline only cares about the
// repository interfaces, so tests swap the sqlite implementation for
// maps and counters and assert on exactly what crossed each boundary.

type fakeUserRepo struct {
	byGitHubID map[int64]*model.User
	byLogin    map[string]*model.User
	byID       map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byGitHubID: make(map[int64]*model.User),
		byLogin:    make(map[string]*model.User),
		byID:       make(map[string]*model.User),
	}
}

func (f *fakeUserRepo) add(u *model.User) {
	f.byGitHubID[u.GitHubID] = u
	f.byLogin[u.GitHubUsername] = u
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	if existing, ok := f.byGitHubID[user.GitHubID]; ok {
		user.ID = existing.ID
	} else if user.ID == "" {
		user.ID = "fake-" + user.GitHubUsername
	}
	f.add(user)
	return nil
}

func (f *fakeUserRepo) GetByInternalID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	if u, ok := f.byGitHubID[githubID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", "github")
}

func (f *fakeUserRepo) GetByGitHubUsername(_ context.Context, username string) (*model.User, error) {
	if u, ok := f.byLogin[username]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) SetLinkedIn(_ context.Context, userID, linkedinID, linkedinToken string) error {
	u, ok := f.byID[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.LinkedInID = linkedinID
	u.LinkedInToken = linkedinToken
	return nil
}

func (f *fakeUserRepo) ClearLinkedIn(_ context.Context, userID string) error {
	u, ok := f.byID[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.LinkedInID = ""
	u.LinkedInToken = ""
	return nil
}

type eventKey struct {
	userID, repo, message string
}

type fakeEventRepo struct {
	rows        map[eventKey]*model.GitHubEvent
	createCalls int
	// conflictOnCreate simulates losing the insert race: Exists said no,
	// but a concurrent delivery inserted first.
	conflictOnCreate bool
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{rows: make(map[eventKey]*model.GitHubEvent)}
}

func (f *fakeEventRepo) Create(_ context.Context, event *model.GitHubEvent) error {
	f.createCalls++
	if f.conflictOnCreate {
		return apperror.Conflict("event", event.RepoName)
	}
	key := eventKey{event.UserID, event.RepoName, event.CommitMessage}
	if _, ok := f.rows[key]; ok {
		return apperror.Conflict("event", event.RepoName)
	}
	event.ID = "evt-1"
	f.rows[key] = event
	return nil
}

func (f *fakeEventRepo) Exists(_ context.Context, userID, repoName, commitMessage string) (bool, error) {
	_, ok := f.rows[eventKey{userID, repoName, commitMessage}]
	return ok, nil
}

func (f *fakeEventRepo) ListByUser(_ context.Context, userID string) ([]model.GitHubEvent, error) {
	var out []model.GitHubEvent
	for _, e := range f.rows {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakePublisher struct {
	calls  int
	postID string
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, _ *model.User, _ *github.PushEvent) (*linkedin.PublishResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &linkedin.PublishResult{PostID: f.postID}, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T) (*WebhookService, *fakeUserRepo, *fakeEventRepo, *fakePublisher) {
	t.Helper()
	users := newFakeUserRepo()
	events := newFakeEventRepo()
	pub := &fakePublisher{postID: "urn:li:share:1"}
	svc := NewWebhookService(users, events, pub, quietLogger())
	return svc, users, events, pub
}

func pushPayload(repo, message string, ownerID int64, pusher string) *github.PushEvent {
	ev := &github.PushEvent{
		Repo: &github.PushEventRepository{
			Name:    github.String(repo),
			HTMLURL: github.String("https://github.com/" + pusher + "/" + repo),
		},
		HeadCommit: &github.HeadCommit{
			Message: github.String(message),
			URL:     github.String("https://github.com/" + pusher + "/" + repo + "/commit/abc"),
		},
	}
	if ownerID != 0 {
		ev.Repo.Owner = &github.User{ID: github.Int64(ownerID)}
	}
	if pusher != "" {
		ev.Pusher = &github.CommitAuthor{Name: github.String(pusher)}
	}
	return ev
}

func linkedTestUser() *model.User {
	return &model.User{
		ID:             "user-1",
		GitHubID:       42,
		GitHubUsername: "sakif",
		LinkedInID:     "AbC",
		LinkedInToken:  "tok",
	}
}

// =========================================================================
// PROCESS PUSH TESTS
// =========================================================================

func TestProcessPush_Success(t *testing.T) {
	svc, users, events, pub := newTestPipeline(t)
	users.add(linkedTestUser())

	outcome, err := svc.ProcessPush(context.Background(), pushPayload("commitcast", "add pipeline", 42, "sakif"))
	if err != nil {
		t.Fatalf("ProcessPush() error = %v", err)
	}

	if outcome.Redundant {
		t.Error("first delivery marked redundant")
	}
	if outcome.PostID != "urn:li:share:1" {
		t.Errorf("PostID = %q, want urn:li:share:1", outcome.PostID)
	}
	if pub.calls != 1 {
		t.Errorf("publisher called %d times, want 1", pub.calls)
	}

	exists, _ := events.Exists(context.Background(), "user-1", "commitcast", "add pipeline")
	if !exists {
		t.Error("event was not persisted")
	}
	if outcome.Event == nil || outcome.Event.LinkedInPostID != "urn:li:share:1" {
		t.Error("persisted event does not carry the post ID")
	}
}

// TestProcessPush_SecondDeliveryIsRedundant pins idempotency: same
// delivery twice → one publish, one row, second answer redundant.
func TestProcessPush_SecondDeliveryIsRedundant(t *testing.T) {
	svc, users, events, pub := newTestPipeline(t)
	users.add(linkedTestUser())
	ev := pushPayload("commitcast", "add pipeline", 42, "sakif")

	if _, err := svc.ProcessPush(context.Background(), ev); err != nil {
		t.Fatalf("first ProcessPush() error = %v", err)
	}
	outcome, err := svc.ProcessPush(context.Background(), ev)
	if err != nil {
		t.Fatalf("second ProcessPush() error = %v", err)
	}

	if !outcome.Redundant {
		t.Error("second identical delivery not marked redundant")
	}
	if pub.calls != 1 {
		t.Errorf("publisher called %d times across both deliveries, want 1", pub.calls)
	}
	if events.createCalls != 1 {
		t.Errorf("Create called %d times, want 1", events.createCalls)
	}
}

func TestProcessPush_MissingFields(t *testing.T) {
	svc, users, _, pub := newTestPipeline(t)
	users.add(linkedTestUser())

	// No commit message.
	ev := pushPayload("commitcast", "", 42, "sakif")
	ev.HeadCommit = nil

	_, err := svc.ProcessPush(context.Background(), ev)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if pub.calls != 0 {
		t.Errorf("publisher called %d times on an invalid payload, want 0", pub.calls)
	}
}

func TestProcessPush_UnknownActor(t *testing.T) {
	svc, _, events, pub := newTestPipeline(t)

	_, err := svc.ProcessPush(context.Background(), pushPayload("repo", "msg", 7, "stranger"))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if pub.calls != 0 || events.createCalls != 0 {
		t.Error("unknown actor must cause no publish and no insert")
	}
}

// TestProcessPush_PusherNameFallback covers payloads where the owner ID
// doesn't match any user but pusher.name does.
func TestProcessPush_PusherNameFallback(t *testing.T) {
	svc, users, _, _ := newTestPipeline(t)
	users.add(linkedTestUser())

	// Owner ID 999 is unknown; pusher "sakif" is our user.
	outcome, err := svc.ProcessPush(context.Background(), pushPayload("commitcast", "msg", 999, "sakif"))
	if err != nil {
		t.Fatalf("ProcessPush() error = %v", err)
	}
	if outcome.Event.UserID != "user-1" {
		t.Errorf("event attributed to %q, want user-1", outcome.Event.UserID)
	}
}

func TestProcessPush_PublisherErrorPropagates(t *testing.T) {
	svc, users, events, pub := newTestPipeline(t)
	users.add(linkedTestUser())
	pub.err = apperror.Upstream("linkedin", "publish returned status 502")

	_, err := svc.ProcessPush(context.Background(), pushPayload("commitcast", "msg", 42, "sakif"))
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream passed through", err)
	}
	// A failed publish must leave no record — GitHub's redelivery should
	// get a clean retry, not a redundant answer.
	if events.createCalls != 0 {
		t.Errorf("Create called %d times after failed publish, want 0", events.createCalls)
	}
}

func TestProcessPush_MissingCredentialsPropagates(t *testing.T) {
	svc, users, _, pub := newTestPipeline(t)
	users.add(linkedTestUser())
	pub.err = apperror.MissingCredentials("LinkedIn account not linked")

	_, err := svc.ProcessPush(context.Background(), pushPayload("commitcast", "msg", 42, "sakif"))
	if !errors.Is(err, apperror.ErrMissingCredentials) {
		t.Fatalf("error = %v, want ErrMissingCredentials", err)
	}
}

// TestProcessPush_InsertConflictIsRedundant covers the dedup race: the
// Exists check passed, but the insert hit the unique index because a
// concurrent identical delivery won.
func TestProcessPush_InsertConflictIsRedundant(t *testing.T) {
	svc, users, events, _ := newTestPipeline(t)
	users.add(linkedTestUser())
	events.conflictOnCreate = true

	outcome, err := svc.ProcessPush(context.Background(), pushPayload("commitcast", "msg", 42, "sakif"))
	if err != nil {
		t.Fatalf("ProcessPush() error = %v, want conflict surfaced as redundant", err)
	}
	if !outcome.Redundant {
		t.Error("insert conflict not reported as redundant")
	}
}

func TestProcessPush_DegradedPublishStillPersists(t *testing.T) {
	svc, users, _, pub := newTestPipeline(t)
	users.add(linkedTestUser())
	pub.postID = "" // publisher degraded: success, no post ID

	outcome, err := svc.ProcessPush(context.Background(), pushPayload("commitcast", "msg", 42, "sakif"))
	if err != nil {
		t.Fatalf("ProcessPush() error = %v", err)
	}
	if outcome.Event == nil {
		t.Fatal("degraded publish did not persist an event")
	}
	if outcome.Event.Status() != model.EventStatusUnposted {
		t.Errorf("Status() = %q, want unposted when PostID is empty", outcome.Event.Status())
	}
}
