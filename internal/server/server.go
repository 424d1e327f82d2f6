// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This is the composition root: every dependency — database, OAuth
// providers, publisher, services, handlers — is wired here, in one
// place, and injected downward. Handlers never touch the database;
// services never touch HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/config"
	"github.com/sakif/commitcast/internal/handler"
	"github.com/sakif/commitcast/internal/linkedin"
	"github.com/sakif/commitcast/internal/middleware"
	sqliteRepo "github.com/sakif/commitcast/internal/repository/sqlite"
	"github.com/sakif/commitcast/internal/service"
	"github.com/sakif/commitcast/internal/webhook"
)

// Server owns the router, the configuration, and the database
// connection (closed during graceful shutdown).
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency graph and wires the routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the components, and maps
// every route.
//
// ROUTE MAP:
//
//	GET  /healthz                                → liveness probe
//	POST /webhook/github                         → webhook pipeline
//	GET  /auth/github                            → GitHub OAuth redirect
//	GET  /auth/github/callback                   → GitHub OAuth callback
//	GET  /auth/linkedin                (session) → LinkedIn link start
//	GET  /auth/linkedin/callback                 → LinkedIn link callback
//	GET  /api/github/{githubID}/status (session)
//	GET  /api/github/{githubID}/commits(session)
//	POST /api/github/{githubID}/link_linkedin (session)
//	GET  /api/get_user_profile         (session)
//	POST /api/preview_linkedin_post              → composer preview
//	POST /api/preview_linkedin_digest            → digest preview
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Auth plumbing ===
	tokens, err := auth.NewTokenService(s.cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	states := auth.NewStateStore()

	githubProvider := auth.NewGitHubProvider(
		s.cfg.GitHubClientID,
		s.cfg.GitHubClientSecret,
		s.cfg.BackendURL+"/auth/github/callback",
	)
	linkedinProvider := auth.NewLinkedInProvider(
		s.cfg.LinkedInClientID,
		s.cfg.LinkedInClientSecret,
		s.cfg.LinkedInRedirectURI,
	)

	// === Pipeline components ===
	verifier := webhook.NewVerifier(s.cfg.GitHubWebhookSecret, s.logger)
	publisher := linkedin.NewPublisher(s.logger)

	accountService := service.NewAccountService(s.db, s.db, linkedinProvider, states, tokens, s.logger)
	webhookService := service.NewWebhookService(s.db, s.db, publisher, s.logger)

	// === Handlers ===
	secureCookies := s.cfg.Mode != config.ModeDevelopment
	testingMode := s.cfg.Mode == config.ModeTesting

	authHandler := handler.NewAuthHandler(
		githubProvider, accountService,
		s.cfg.FrontendURL, secureCookies, testingMode, s.logger,
	)
	webhookHandler := handler.NewWebhookHandler(verifier, webhookService, s.logger)
	apiHandler := handler.NewAPIHandler(accountService, s.logger)

	// === Routes ===
	s.router.Get("/healthz", apiHandler.HandleHealth)
	s.router.Post("/webhook/github", webhookHandler.HandleGitHub)

	s.router.Get("/auth/github", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	s.router.Get("/auth/linkedin/callback", authHandler.HandleLinkedInCallback)
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/auth/linkedin", authHandler.HandleLinkedInBegin)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Preview endpoints are public: they compose text, nothing more.
		r.Post("/preview_linkedin_post", apiHandler.HandlePreviewPost)
		r.Post("/preview_linkedin_digest", apiHandler.HandlePreviewDigest)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/github/{githubID}/status", apiHandler.HandleStatus)
			r.Get("/github/{githubID}/commits", apiHandler.HandleCommits)
			r.Post("/github/{githubID}/link_linkedin", apiHandler.HandleManualLink)
			r.Get("/get_user_profile", apiHandler.HandleProfile)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests
// (30s), close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("mode", string(s.cfg.Mode)),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the chi mux for tests that drive the full HTTP
// surface with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}
