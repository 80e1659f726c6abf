// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary as a single file.
// No separate database server to install, configure, or manage, which suits a
// single-instance backend-for-frontend. Use ":memory:" for tests.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, so you need a C compiler and cross-compilation becomes
// painful. modernc.org/sqlite is a pure Go translation of SQLite.
//
// The Postgres backend (internal/repository/postgres) implements the same
// repository.ArticleRepository interface; config picks one at startup.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// backend is the label used for this store in metrics.
const backend = "sqlite"

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/openwiki.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests, lost on close)
//
// sql.Open() does NOT open a connection; Ping forces one so a bad path or
// permissions problem surfaces at startup instead of on the first request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" gets its own empty database, so the
	// pool must never grow past one connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Concurrent writers wait up to 5s for the lock instead of failing with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by GET /api/test/db.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run on every start.
//
// user_id has no foreign key: users live in the external auth service, not here.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_articles (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			title           TEXT NOT NULL,
			content         TEXT NOT NULL,
			image_url       TEXT NOT NULL DEFAULT '',
			page_id         TEXT NOT NULL DEFAULT '',
			wiki_url        TEXT NOT NULL DEFAULT '',
			date_downloaded DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (user_id <> '' AND title <> '' AND content <> '')
		);
		CREATE INDEX IF NOT EXISTS idx_saved_articles_user_id ON saved_articles(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_articles table: %w", err)
	}

	return nil
}
