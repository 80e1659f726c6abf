package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/auth"
	"github.com/sakif/openwiki/internal/model"
	"github.com/sakif/openwiki/internal/service"
)

// ArticleService is the subset of *service.ArticleService the handlers use.
type ArticleService interface {
	Save(ctx context.Context, userID string, in service.SaveArticleInput) (*model.Article, error)
	ListForUser(ctx context.Context, userID string) ([]model.Article, error)
	GetForUser(ctx context.Context, userID, id string) (*model.Article, error)
	Update(ctx context.Context, userID, id string, in service.SaveArticleInput) (*model.Article, error)
	Delete(ctx context.Context, userID, id string) error
}

// ArticleHandler serves CRUD for the calling user's saved articles.
// Routes are mounted behind auth.Identity, which puts the user id in the context.
type ArticleHandler struct {
	articles ArticleService
	logger   *slog.Logger
}

func NewArticleHandler(articles ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// articleRequest is the body of POST and PUT /api/articles. Clients send
// either camelCase or snake_case keys, and pageId as a string or a number.
type articleRequest struct {
	service.SaveArticleInput
}

func (a *articleRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title         string          `json:"title"`
		Content       string          `json:"content"`
		ImageURL      string          `json:"imageUrl"`
		ImageURLSnake string          `json:"image_url"`
		PageID        json.RawMessage `json:"pageId"`
		PageIDSnake   json.RawMessage `json:"page_id"`
		WikiURL       string          `json:"wikiUrl"`
		WikiURLSnake  string          `json:"wiki_url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Title = raw.Title
	a.Content = raw.Content
	a.ImageURL = firstNonEmpty(raw.ImageURL, raw.ImageURLSnake)
	a.PageID = firstNonEmpty(scalarString(raw.PageID), scalarString(raw.PageIDSnake))
	a.WikiURL = firstNonEmpty(raw.WikiURL, raw.WikiURLSnake)
	return nil
}

// HandleList returns the caller's saved articles, newest first.
//
// HTTP: GET /api/articles
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	articles, err := h.articles.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, articles)
}

// HandleCreate saves an article for the caller.
//
// HTTP: POST /api/articles
// REQUEST BODY: {"title": "Roma", "content": "...", "imageUrl": "...", "pageId": "7", "wikiUrl": "..."}
// RESPONSE: 201 with the stored article (id and dateDownloaded filled in)
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req articleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	article, err := h.articles.Save(r.Context(), userID, req.SaveArticleInput)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, article)
}

// HandleGet returns one of the caller's articles.
//
// HTTP: GET /api/articles/{id}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	article, err := h.articles.GetForUser(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

// HandleUpdate replaces the editable fields of one of the caller's articles.
//
// HTTP: PUT /api/articles/{id}
// RESPONSE: 200 with the updated article, 404 when the caller owns no such article
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req articleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	article, err := h.articles.Update(r.Context(), userID, chi.URLParam(r, "id"), req.SaveArticleInput)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

// HandleDelete removes one of the caller's articles.
//
// HTTP: DELETE /api/articles/{id}
// RESPONSE: 204 on success, 404 when the caller owns no such article
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.articles.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// userID reads the identity put in the context by auth.Identity. A route
// mounted without that middleware answers 401.
func (h *ArticleHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("user identity is required"))
		return "", false
	}
	return id, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// scalarString renders a JSON string or number as a plain string.
// Anything else (null, objects, arrays) becomes "".
func scalarString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return ""
		}
		return v
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s
	}
	return ""
}
