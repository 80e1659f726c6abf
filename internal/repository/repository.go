package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/sakif/openwiki/internal/model"
)

// ErrIncompleteArticle is the cause reported when an article without an
// owner, title or content reaches a store.
var ErrIncompleteArticle = errors.New("article requires user id, title and content")

// CheckComplete reports ErrIncompleteArticle unless article has a user id,
// a title and content. Stores call it before writing.
func CheckComplete(article *model.Article) error {
	if article == nil ||
		strings.TrimSpace(article.UserID) == "" ||
		strings.TrimSpace(article.Title) == "" ||
		strings.TrimSpace(article.Content) == "" {
		return ErrIncompleteArticle
	}
	return nil
}

// ArticleRepository persists saved articles, scoped by owning user.
//
// Save and UpdateArticle reject articles that fail CheckComplete with a
// persistence error and write nothing.
//
// DeleteArticle and UpdateArticle match on id AND user_id inside a single
// statement; they report false (not an error) when no owned row matched.
type ArticleRepository interface {
	Save(ctx context.Context, article *model.Article) error
	FindByUserID(ctx context.Context, userID string) ([]model.Article, error)
	FindByID(ctx context.Context, id string) (*model.Article, error)
	DeleteArticle(ctx context.Context, id, userID string) (bool, error)
	UpdateArticle(ctx context.Context, article *model.Article) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
