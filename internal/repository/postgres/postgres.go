// Package postgres implements repository.ArticleRepository on PostgreSQL
// using sqlx over the lib/pq driver. Selected with database.driver=postgres.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const backend = "postgres"

const schema = `
	CREATE TABLE IF NOT EXISTS saved_articles (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		content         TEXT NOT NULL,
		image_url       TEXT NOT NULL DEFAULT '',
		page_id         TEXT NOT NULL DEFAULT '',
		wiki_url        TEXT NOT NULL DEFAULT '',
		date_downloaded TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (user_id <> '' AND title <> '' AND content <> '')
	);
	CREATE INDEX IF NOT EXISTS idx_saved_articles_user_id ON saved_articles(user_id);
`

// ArticleStore stores saved articles in PostgreSQL.
type ArticleStore struct {
	db *sqlx.DB
}

// Open connects to dsn, applies the schema and returns a ready store.
func Open(ctx context.Context, dsn string) (*ArticleStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	store := NewArticleStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewArticleStore wraps an existing connection. The schema is not touched.
func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Migrate creates the saved_articles table and its index if missing.
func (s *ArticleStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}
	return nil
}

func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (s *ArticleStore) Close() error {
	return s.db.Close()
}
