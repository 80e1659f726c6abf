// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// ArticleService takes a repository.ArticleRepository (interface), not a
// concrete store, so tests inject an in-memory fake and main.go picks SQLite
// or Postgres from config.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/model"
	"github.com/sakif/openwiki/internal/repository"
)

// SaveArticleInput is what a client may set on a saved article. Used for both
// create and update. The json tags name the fields in validation errors.
type SaveArticleInput struct {
	Title    string `json:"title"    validate:"required,max=512"`
	Content  string `json:"content"  validate:"required"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
	PageID   string `json:"pageId"   validate:"omitempty,max=64"`
	WikiURL  string `json:"wikiUrl"  validate:"omitempty,url"`
}

// normalize trims the title and makes protocol-relative image URLs absolute,
// so "//upload.wikimedia.org/x.jpg" passes the url check.
func (in *SaveArticleInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	if strings.TrimSpace(in.Content) == "" {
		in.Content = ""
	}
	in.ImageURL = model.NormalizeImageURL(strings.TrimSpace(in.ImageURL))
	in.PageID = strings.TrimSpace(in.PageID)
	in.WikiURL = strings.TrimSpace(in.WikiURL)
}

// ArticleService handles saved-article use cases for one user at a time.
type ArticleService struct {
	repo     repository.ArticleRepository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewArticleService(repo repository.ArticleRepository, logger *slog.Logger) *ArticleService {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names ("imageUrl", not "ImageURL").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ArticleService{
		repo:     repo,
		validate: v,
		logger:   logger,
	}
}

// Save validates input and stores it as a new article owned by userID.
func (s *ArticleService) Save(ctx context.Context, userID string, in SaveArticleInput) (*model.Article, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	in.normalize()
	if err := s.check(in); err != nil {
		return nil, err
	}

	article := &model.Article{
		UserID:   userID,
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		PageID:   in.PageID,
		WikiURL:  in.WikiURL,
	}

	if err := s.repo.Save(ctx, article); err != nil {
		s.logger.Error("failed to save article",
			slog.String("user_id", userID),
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving article: %w", err)
	}

	s.logger.Info("article saved",
		slog.String("id", article.ID),
		slog.String("user_id", userID),
		slog.String("title", article.Title),
	)

	return article, nil
}

// ListForUser returns the user's saved articles, newest first. Never nil.
func (s *ArticleService) ListForUser(ctx context.Context, userID string) ([]model.Article, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	articles, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list articles",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	if articles == nil {
		articles = []model.Article{}
	}
	return articles, nil
}

// GetForUser returns one saved article. Someone else's article is reported
// as not found, the same as a missing one.
func (s *ArticleService) GetForUser(ctx context.Context, userID, id string) (*model.Article, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "article ID is required")
	}

	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.UserID != userID {
		return nil, apperror.NotFound("article", id)
	}
	return article, nil
}

// Update replaces the editable fields of an owned article and returns the
// stored result. Owner and download date never change.
func (s *ArticleService) Update(ctx context.Context, userID, id string, in SaveArticleInput) (*model.Article, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "article ID is required")
	}
	in.normalize()
	if err := s.check(in); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateArticle(ctx, &model.Article{
		ID:       id,
		UserID:   userID,
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		PageID:   in.PageID,
		WikiURL:  in.WikiURL,
	})
	if err != nil {
		s.logger.Error("failed to update article",
			slog.String("id", id),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating article: %w", err)
	}
	if !updated {
		return nil, apperror.NotFound("article", id)
	}

	s.logger.Info("article updated", slog.String("id", id), slog.String("user_id", userID))

	// Re-read so the response carries the stored download date.
	return s.repo.FindByID(ctx, id)
}

// Delete removes an owned article. Missing and foreign ids are both NotFound.
func (s *ArticleService) Delete(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "article ID is required")
	}

	deleted, err := s.repo.DeleteArticle(ctx, id, userID)
	if err != nil {
		s.logger.Error("failed to delete article",
			slog.String("id", id),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting article: %w", err)
	}
	if !deleted {
		return apperror.NotFound("article", id)
	}

	s.logger.Info("article deleted", slog.String("id", id), slog.String("user_id", userID))
	return nil
}

// Ping checks the store. Used by the database health endpoint.
func (s *ArticleService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperror.Unauthenticated("user identity is required")
	}
	return nil
}

// check runs the struct validator and reports the first failing field.
func (s *ArticleService) check(in SaveArticleInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(field, field+" is required")
	case "max":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %s characters or less", field, fe.Param()))
	case "url":
		return apperror.ValidationFailed(field, field+" must be a valid URL")
	default:
		return apperror.ValidationFailed(field, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
	}
}
