package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
)

// LinkedInExchanger is what the account flows need from the LinkedIn
// OAuth provider. *auth.LinkedInProvider satisfies it; tests substitute
// a fake.
type LinkedInExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.LinkedInToken, error)
	ResolveMemberID(ctx context.Context, token *auth.LinkedInToken) (string, error)
}

// AccountService owns the credential store flows: GitHub login and the
// LinkedIn link lifecycle.
type AccountService struct {
	users    repository.UserRepository
	events   repository.EventRepository
	linkedin LinkedInExchanger
	states   *auth.StateStore
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	events repository.EventRepository,
	linkedinProvider LinkedInExchanger,
	states *auth.StateStore,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		events:   events,
		linkedin: linkedinProvider,
		states:   states,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles the upserted user with the issued session token so
// the handler can set the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback: upsert the
// user (create on first login, refresh profile + token afterwards) and
// issue a session token.
func (s *AccountService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser, accessToken string) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/account: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:       ghUser.ID,
		GitHubUsername: ghUser.Login,
		Name:           ghUser.Name,
		Email:          ghUser.Email,
		AvatarURL:      ghUser.AvatarURL,
		GitHubToken:    accessToken,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.GitHubUsername),
	)

	token, err := s.tokens.Generate(user.GitHubID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating session for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// BeginLinkedInLink starts (or restarts) the LinkedIn link flow for the
// authenticated GitHub user and returns the authorization URL to
// redirect the browser to.
//
// Any existing LinkedIn credentials are cleared FIRST: a failed re-link
// must not leave the old token attributed to a member the user is about
// to replace. Then an opaque state is minted and bound server-side to
// the user; the callback redeems it.
func (s *AccountService) BeginLinkedInLink(ctx context.Context, githubID int64) (string, error) {
	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return "", fmt.Errorf("service/account: loading user %d: %w", githubID, err)
	}

	if user.LinkedInID != "" || user.LinkedInToken != "" {
		if err := s.users.ClearLinkedIn(ctx, user.ID); err != nil {
			return "", fmt.Errorf("service/account: clearing stale LinkedIn link: %w", err)
		}
		s.logger.Info("cleared existing LinkedIn link before re-link",
			slog.String("userID", user.ID),
		)
	}

	state := s.states.Issue(user.ID)
	return s.linkedin.AuthURL(state), nil
}

// CompleteLinkedInLink finishes the flow on the OAuth callback:
// validate the state, exchange the code, resolve the member ID, persist
// the credentials against the user the state was bound to.
func (s *AccountService) CompleteLinkedInLink(ctx context.Context, state, code string) (*model.User, error) {
	userID, ok := s.states.Consume(state)
	if !ok {
		return nil, apperror.Forbidden("invalid or expired OAuth state")
	}

	token, err := s.linkedin.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	memberID, err := s.linkedin.ResolveMemberID(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetLinkedIn(ctx, userID, memberID, token.AccessToken); err != nil {
		return nil, fmt.Errorf("service/account: persisting LinkedIn link: %w", err)
	}

	s.logger.Info("linkedin account linked",
		slog.String("userID", userID),
		slog.String("linkedinID", memberID),
	)

	user, err := s.userByInternalID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ManualLink attaches LinkedIn credentials directly, bypassing OAuth.
// Test/debug path only — exposed behind an authenticated API route.
func (s *AccountService) ManualLink(ctx context.Context, githubID int64, linkedinID, linkedinToken string) error {
	if linkedinID == "" || linkedinToken == "" {
		return apperror.ValidationFailed("linkedin", "missing LinkedIn token or ID")
	}

	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return fmt.Errorf("service/account: loading user %d: %w", githubID, err)
	}

	if err := s.users.SetLinkedIn(ctx, user.ID, linkedinID, linkedinToken); err != nil {
		return fmt.Errorf("service/account: manual LinkedIn link: %w", err)
	}
	return nil
}

// Profile returns the credential record for the authenticated GitHub
// user.
func (s *AccountService) Profile(ctx context.Context, githubID int64) (*model.User, error) {
	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading user %d: %w", githubID, err)
	}
	return user, nil
}

// Commits lists the publication records for the authenticated GitHub
// user, newest first.
func (s *AccountService) Commits(ctx context.Context, githubID int64) ([]model.GitHubEvent, error) {
	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading user %d: %w", githubID, err)
	}

	events, err := s.events.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing events for user %s: %w", user.ID, err)
	}
	return events, nil
}

func (s *AccountService) userByInternalID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByInternalID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading user %s: %w", userID, err)
	}
	return user, nil
}
