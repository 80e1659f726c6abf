package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/metrics"
	"github.com/sakif/openwiki/internal/model"
	"github.com/sakif/openwiki/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.ArticleRepository = (*DB)(nil)

const articleColumns = `id, user_id, title, content, image_url, page_id, wiki_url, date_downloaded`

// Save inserts a new saved article.
//
// The caller's struct is modified in place: after Save it carries the
// generated ID and DateDownloaded. A DateDownloaded already set by the
// caller is kept.
func (db *DB) Save(ctx context.Context, article *model.Article) (err error) {
	defer metrics.ObserveStore(backend, "save", time.Now(), &err)

	if err := repository.CheckComplete(article); err != nil {
		return apperror.PersistenceFailed("save article", err)
	}

	article.ID = xid.New().String()
	if article.DateDownloaded == nil {
		now := time.Now().UTC()
		article.DateDownloaded = &now
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO saved_articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID,
		article.UserID,
		article.Title,
		article.Content,
		article.ImageURL,
		article.PageID,
		article.WikiURL,
		article.DateDownloaded.UTC(),
	)
	if err != nil {
		return apperror.PersistenceFailed("save article", err)
	}

	return nil
}

// FindByUserID returns every article owned by userID, newest first.
// A user with no articles gets an empty, non-nil slice.
func (db *DB) FindByUserID(ctx context.Context, userID string) (_ []model.Article, err error) {
	defer metrics.ObserveStore(backend, "find_by_user", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+articleColumns+`
		 FROM saved_articles
		 WHERE user_id = ?
		 ORDER BY date_downloaded DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.PersistenceFailed("list articles", err)
	}
	defer rows.Close()

	articles := []model.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, apperror.PersistenceFailed("list articles", err)
		}
		articles = append(articles, *article)
	}

	// rows.Next() returns false on both "done" and "failed"; Err tells them apart.
	if err := rows.Err(); err != nil {
		return nil, apperror.PersistenceFailed("list articles", err)
	}

	return articles, nil
}

// FindByID returns the article with the given id regardless of owner.
func (db *DB) FindByID(ctx context.Context, id string) (_ *model.Article, err error) {
	defer metrics.ObserveStore(backend, "find_by_id", time.Now(), &err)

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+articleColumns+`
		 FROM saved_articles
		 WHERE id = ?`,
		id,
	)

	article, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("article", id)
		}
		return nil, apperror.PersistenceFailed("get article", err)
	}

	return article, nil
}

// DeleteArticle removes the article only if userID owns it.
// Returns false when nothing matched (missing id or someone else's article).
func (db *DB) DeleteArticle(ctx context.Context, id, userID string) (_ bool, err error) {
	defer metrics.ObserveStore(backend, "delete", time.Now(), &err)

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM saved_articles WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return false, apperror.PersistenceFailed("delete article", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperror.PersistenceFailed("delete article", err)
	}

	return rowsAffected > 0, nil
}

// UpdateArticle overwrites the mutable fields of an owned article.
// article.ID and article.UserID select the row; user_id and date_downloaded
// are never changed.
func (db *DB) UpdateArticle(ctx context.Context, article *model.Article) (_ bool, err error) {
	defer metrics.ObserveStore(backend, "update", time.Now(), &err)

	if err := repository.CheckComplete(article); err != nil {
		return false, apperror.PersistenceFailed("update article", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE saved_articles
		 SET title = ?, content = ?, image_url = ?, wiki_url = ?, page_id = ?
		 WHERE id = ? AND user_id = ?`,
		article.Title,
		article.Content,
		article.ImageURL,
		article.WikiURL,
		article.PageID,
		article.ID,
		article.UserID,
	)
	if err != nil {
		return false, apperror.PersistenceFailed("update article", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperror.PersistenceFailed("update article", err)
	}

	return rowsAffected > 0, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (*model.Article, error) {
	var (
		article    model.Article
		downloaded time.Time
	)
	err := s.Scan(
		&article.ID,
		&article.UserID,
		&article.Title,
		&article.Content,
		&article.ImageURL,
		&article.PageID,
		&article.WikiURL,
		&downloaded,
	)
	if err != nil {
		return nil, err
	}
	downloaded = downloaded.UTC()
	article.DateDownloaded = &downloaded
	return &article, nil
}
