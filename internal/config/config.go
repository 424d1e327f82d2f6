// Package config loads process configuration from the environment into
// one explicit struct.
//
// NO AMBIENT GLOBALS:
// Nothing in this codebase reads os.Getenv at use time. main calls
// Load() exactly once and injects the resulting Config (or the fields a
// component needs) everywhere. That keeps the signature verifier, the
// OAuth providers and the publisher testable without environment
// mutation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mode selects how strictly Load treats missing variables.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeTesting     Mode = "testing"
	ModeProduction  Mode = "production"
)

// Config is the full process configuration.
type Config struct {
	Mode Mode
	Port int

	// OAuth app credentials.
	GitHubClientID     string
	GitHubClientSecret string
	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURI  string

	// Shared secret GitHub signs webhook deliveries with.
	GitHubWebhookSecret string

	// Secret used to sign the session cookie (HS256).
	SessionSecret string

	// DatabaseURL is accepted for platform parity (Heroku-style
	// deploys export it); Load normalizes the legacy postgres://
	// scheme. Storage itself runs on the sqlite file at DBPath.
	DatabaseURL string
	DBPath      string

	BackendURL  string
	FrontendURL string
}

// Load reads the environment and returns the assembled Config.
//
// In production mode every credential is required and Load returns one
// error naming all missing variables, so the process fails fast at
// startup instead of 500-ing on the first webhook. Development and
// testing modes fall back to permissive defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Mode: parseMode(os.Getenv("APP_ENV")),
		Port: 8080,

		GitHubClientID:     firstEnv("GITHUB_CLIENT_ID", "SECRET_GITHUB_CLIENT_ID"),
		GitHubClientSecret: firstEnv("GITHUB_CLIENT_SECRET", "SECRET_GITHUB_CLIENT_SECRET"),

		LinkedInClientID:     strings.TrimSpace(os.Getenv("LINKEDIN_CLIENT_ID")),
		LinkedInClientSecret: strings.TrimSpace(os.Getenv("LINKEDIN_CLIENT_SECRET")),
		LinkedInRedirectURI:  strings.TrimSpace(os.Getenv("LINKEDIN_REDIRECT_URI")),

		GitHubWebhookSecret: strings.TrimSpace(os.Getenv("GITHUB_WEBHOOK_SECRET")),
		SessionSecret:       strings.TrimSpace(os.Getenv("SESSION_SECRET")),

		DatabaseURL: NormalizeDatabaseURL(os.Getenv("DATABASE_URL")),
		DBPath:      strings.TrimSpace(os.Getenv("DB_PATH")),

		BackendURL:  strings.TrimSpace(os.Getenv("BACKEND_URL")),
		FrontendURL: strings.TrimSpace(os.Getenv("FRONTEND_URL")),
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("config: invalid PORT value %q", portStr)
		}
		cfg.Port = port
	}

	cfg.applyDefaults()

	if cfg.Mode == ModeProduction {
		if missing := cfg.missingRequired(); len(missing) > 0 {
			return nil, fmt.Errorf("config: missing required environment variables: %s",
				strings.Join(missing, ", "))
		}
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		switch c.Mode {
		case ModeTesting:
			c.DBPath = ":memory:"
		default:
			c.DBPath = "data/commitcast.db"
		}
	}
	if c.BackendURL == "" {
		c.BackendURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.FrontendURL == "" {
		c.FrontendURL = c.BackendURL
	}
	if c.LinkedInRedirectURI == "" {
		c.LinkedInRedirectURI = c.BackendURL + "/auth/linkedin/callback"
	}
	// Dev/test only: a fixed session secret so the server starts
	// without any environment. Production requires a real one.
	if c.SessionSecret == "" && c.Mode != ModeProduction {
		c.SessionSecret = "dev-session-secret-do-not-use"
	}
}

// missingRequired lists every production-required variable that is
// unset, so the startup error names all of them at once.
func (c *Config) missingRequired() []string {
	required := []struct {
		name  string
		value string
	}{
		{"GITHUB_CLIENT_ID", c.GitHubClientID},
		{"GITHUB_CLIENT_SECRET", c.GitHubClientSecret},
		{"LINKEDIN_CLIENT_ID", c.LinkedInClientID},
		{"LINKEDIN_CLIENT_SECRET", c.LinkedInClientSecret},
		{"GITHUB_WEBHOOK_SECRET", c.GitHubWebhookSecret},
		{"SESSION_SECRET", c.SessionSecret},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// NormalizeDatabaseURL rewrites the legacy "postgres://" scheme that
// some platforms still export to the "postgresql://" form drivers
// expect. Any other value passes through untouched.
func NormalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}
	return raw
}

func parseMode(raw string) Mode {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "production", "prod":
		return ModeProduction
	case "testing", "test":
		return ModeTesting
	default:
		return ModeDevelopment
	}
}

// firstEnv returns the first non-empty value among the named variables.
// Used for the GITHUB_CLIENT_ID / SECRET_GITHUB_CLIENT_ID aliasing the
// deployment history left behind.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
