package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/model"
)

// WikiClient is the subset of *wiki.Client the handlers use.
type WikiClient interface {
	Search(ctx context.Context, query string, limit int) ([]model.WikiSearchResult, error)
	GetArticle(ctx context.Context, title string) (*model.Article, error)
	GetFeaturedArticle(ctx context.Context) (*model.Article, error)
}

// WikiHandler serves the read-only Wikipedia endpoints. No identity needed.
type WikiHandler struct {
	wiki   WikiClient
	logger *slog.Logger
}

func NewWikiHandler(wiki WikiClient, logger *slog.Logger) *WikiHandler {
	return &WikiHandler{wiki: wiki, logger: logger}
}

// HandleSearch runs a full-text search.
//
// HTTP: GET /api/wikipedia/search?query=roma&limit=10
//
// limit is optional; a value that is not a number is rejected, a missing one
// means the client default.
func (h *WikiHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("limit", "limit must be an integer"))
			return
		}
		limit = n
	}

	results, err := h.wiki.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// HandleArticle returns one live article by title.
//
// HTTP: GET /api/wikipedia/article/{title}
func (h *WikiHandler) HandleArticle(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	// chi routes on RawPath when it is set (escapes like %2F), leaving the
	// param encoded. Otherwise the param is already decoded.
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(title); err == nil {
			title = unescaped
		}
	}

	article, err := h.wiki.GetArticle(r.Context(), title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

// HandleFeatured returns a random article.
//
// HTTP: GET /api/wikipedia/featured
func (h *WikiHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	article, err := h.wiki.GetFeaturedArticle(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}
