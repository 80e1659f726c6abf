package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/metrics"
	"github.com/sakif/openwiki/internal/model"
	"github.com/sakif/openwiki/internal/repository"
)

var _ repository.ArticleRepository = (*ArticleStore)(nil)

const selectArticles = `
	SELECT id, user_id, title, content, image_url, page_id, wiki_url, date_downloaded
	FROM saved_articles`

func (s *ArticleStore) Save(ctx context.Context, article *model.Article) (err error) {
	defer metrics.ObserveStore(backend, "save", time.Now(), &err)

	if err := repository.CheckComplete(article); err != nil {
		return apperror.PersistenceFailed("save article", err)
	}

	article.ID = xid.New().String()
	if article.DateDownloaded == nil {
		now := time.Now().UTC()
		article.DateDownloaded = &now
	}

	query := `
		INSERT INTO saved_articles (
			id, user_id, title, content, image_url, page_id, wiki_url, date_downloaded
		) VALUES (
			:id, :user_id, :title, :content, :image_url, :page_id, :wiki_url, :date_downloaded
		)`

	if _, err = s.db.NamedExecContext(ctx, query, article); err != nil {
		return apperror.PersistenceFailed("save article", err)
	}
	return nil
}

func (s *ArticleStore) FindByUserID(ctx context.Context, userID string) (_ []model.Article, err error) {
	defer metrics.ObserveStore(backend, "find_by_user", time.Now(), &err)

	articles := []model.Article{}
	err = s.db.SelectContext(ctx, &articles,
		selectArticles+` WHERE user_id = $1 ORDER BY date_downloaded DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.PersistenceFailed("list articles", err)
	}
	return articles, nil
}

func (s *ArticleStore) FindByID(ctx context.Context, id string) (_ *model.Article, err error) {
	defer metrics.ObserveStore(backend, "find_by_id", time.Now(), &err)

	var article model.Article
	err = s.db.GetContext(ctx, &article, selectArticles+` WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("article", id)
	}
	if err != nil {
		return nil, apperror.PersistenceFailed("get article", err)
	}
	return &article, nil
}

func (s *ArticleStore) DeleteArticle(ctx context.Context, id, userID string) (_ bool, err error) {
	defer metrics.ObserveStore(backend, "delete", time.Now(), &err)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_articles WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, apperror.PersistenceFailed("delete article", err)
	}
	return affected(result, "delete article")
}

func (s *ArticleStore) UpdateArticle(ctx context.Context, article *model.Article) (_ bool, err error) {
	defer metrics.ObserveStore(backend, "update", time.Now(), &err)

	if err := repository.CheckComplete(article); err != nil {
		return false, apperror.PersistenceFailed("update article", err)
	}

	query := `
		UPDATE saved_articles
		SET title = :title, content = :content, image_url = :image_url,
			wiki_url = :wiki_url, page_id = :page_id
		WHERE id = :id AND user_id = :user_id`

	result, err := s.db.NamedExecContext(ctx, query, article)
	if err != nil {
		return false, apperror.PersistenceFailed("update article", err)
	}
	return affected(result, "update article")
}

func affected(result sql.Result, op string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperror.PersistenceFailed(op, err)
	}
	return n > 0, nil
}
