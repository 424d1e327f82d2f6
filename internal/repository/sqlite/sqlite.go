// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed
// and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works
// everywhere Go works. It also makes ":memory:" databases trivial for
// tests.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
// One struct implements both repository.UserRepository and
// repository.EventRepository — they share a connection and a schema.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs
// migrations.
//
// dbPath examples:
//   - "data/commitcast.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection only: SQLite serializes writers anyway, and with
	// ":memory:" every pool connection would otherwise get its own empty
	// database.
	conn.SetMaxOpenConns(1)

	// Ping forces an immediate connection so a bad path or permissions
	// issue surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — the
	// webhook handler and the status API hit the DB at the same time.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite; the events table
	// references users, so turn enforcement on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer this next to
// New() — it flushes the WAL and releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe
// to run on every start.
//
// THE UNIQUE INDEX ON github_events IS LOAD-BEARING:
// the webhook pipeline's dedup check (SELECT before publish) and the
// insert afterwards are not atomic across two concurrent deliveries of
// the same push. The unique index on (user_id, repo_name,
// commit_message) closes that race — the second insert fails with a
// constraint violation, which Create maps to apperror.ErrConflict and
// the pipeline reports as a redundant event.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			github_id       INTEGER NOT NULL UNIQUE,
			github_username TEXT NOT NULL,
			name            TEXT NOT NULL DEFAULT '',
			email           TEXT NOT NULL DEFAULT '',
			avatar_url      TEXT NOT NULL DEFAULT '',
			github_token    TEXT NOT NULL DEFAULT '',
			linkedin_id     TEXT,
			linkedin_token  TEXT,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_linkedin_id
			ON users(linkedin_id) WHERE linkedin_id IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS github_events (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			repo_name        TEXT NOT NULL,
			commit_message   TEXT NOT NULL,
			commit_url       TEXT NOT NULL DEFAULT '',
			event_type       TEXT NOT NULL DEFAULT 'push',
			linkedin_post_id TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedup
			ON github_events(user_id, repo_name, commit_message);
		CREATE INDEX IF NOT EXISTS idx_events_user_id
			ON github_events(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating github_events table: %w", err)
	}

	return nil
}
