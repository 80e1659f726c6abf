// Package wiki is a small client for the MediaWiki query API (action=query).
//
// It turns search, article and random-article lookups into domain records:
// model.WikiSearchResult and model.Article. Every upstream failure (transport,
// non-200 status, malformed JSON, open circuit breaker) is reported as
// apperror.ErrUpstream so the HTTP layer can answer 502.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/sakif/openwiki/internal/apperror"
	"github.com/sakif/openwiki/internal/metrics"
	"github.com/sakif/openwiki/internal/model"
)

const (
	upstreamName = "wikipedia"

	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	// Largest response body we are willing to buffer. An article extract is
	// capped by exchars, so real responses are far below this.
	maxBodyBytes = 8 << 20
)

// Config holds the client settings. Zero values are replaced by DefaultConfig's.
type Config struct {
	APIURL             string
	ArticleURL         string
	UserAgent          string
	ConnectTimeout     time.Duration
	RequestTimeout     time.Duration
	ThumbnailSize      int
	ExtractChars       int
	ContentPlaceholder string
	BreakerEnabled     bool
}

// DefaultConfig targets the Italian Wikipedia.
func DefaultConfig() Config {
	return Config{
		APIURL:             "https://it.wikipedia.org/w/api.php",
		ArticleURL:         "https://it.wikipedia.org/wiki/",
		UserAgent:          "OpenWiki/1.0",
		ConnectTimeout:     10 * time.Second,
		RequestTimeout:     30 * time.Second,
		ThumbnailSize:      500,
		ExtractChars:       20000,
		ContentPlaceholder: "Contenuto non disponibile",
		BreakerEnabled:     true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	if c.ArticleURL == "" {
		c.ArticleURL = d.ArticleURL
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.ThumbnailSize <= 0 {
		c.ThumbnailSize = d.ThumbnailSize
	}
	if c.ExtractChars <= 0 {
		c.ExtractChars = d.ExtractChars
	}
	if c.ContentPlaceholder == "" {
		c.ContentPlaceholder = d.ContentPlaceholder
	}
	return c
}

// Client talks to one MediaWiki installation. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte] // nil when disabled
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		logger: logger,
	}

	if cfg.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        upstreamName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A caller hanging up says nothing about Wikipedia's health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				logger.Warn("circuit breaker state changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		})
	}

	return c
}

// Search runs a full-text search and returns at most limit hits in upstream
// ranking order. limit <= 0 means DefaultSearchLimit; values above
// MaxSearchLimit are clamped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.WikiSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("query", "query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"format":   {"json"},
	}

	var resp searchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}

	hits := resp.Query.Search
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]model.WikiSearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.WikiSearchResult{
			Title:   hit.Title,
			Excerpt: hit.Snippet,
			PageID:  strconv.FormatInt(hit.PageID, 10),
			URL:     c.ArticleURL(hit.Title),
		})
	}

	c.logger.Debug("wikipedia search",
		slog.String("query", query),
		slog.Int("limit", limit),
		slog.Int("results", len(results)),
	)

	return results, nil
}

// GetArticle fetches the plain-text extract, canonical URL and thumbnail of
// one page. The content is never empty: a page without an extract gets the
// configured placeholder.
func (c *Client) GetArticle(ctx context.Context, title string) (*model.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}

	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|pageimages|info"},
		"inprop":      {"url"},
		"pithumbsize": {strconv.Itoa(c.cfg.ThumbnailSize)},
		"titles":      {title},
		"explaintext": {"1"},
		"exchars":     {strconv.Itoa(c.cfg.ExtractChars)},
		"format":      {"json"},
	}

	var resp pagesResponse
	if err := c.get(ctx, "article", params, &resp); err != nil {
		return nil, err
	}

	page, ok := resp.page()
	if !ok {
		return nil, apperror.NotFound("article", title)
	}

	article := &model.Article{
		Title:   page.Title,
		Content: page.Extract,
		PageID:  strconv.FormatInt(page.PageID, 10),
		WikiURL: page.FullURL,
	}
	if article.Title == "" {
		article.Title = title
	}
	if article.Content == "" {
		article.Content = c.cfg.ContentPlaceholder
	}
	if article.WikiURL == "" {
		article.WikiURL = c.ArticleURL(article.Title)
	}
	if page.Thumbnail != nil {
		article.ImageURL = model.NormalizeImageURL(page.Thumbnail.Source)
	}

	return article, nil
}

// GetFeaturedArticle picks one random main-namespace page and fetches it.
// Both upstream calls share a single RequestTimeout budget.
func (c *Client) GetFeaturedArticle(ctx context.Context) (*model.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	params := url.Values{
		"action":      {"query"},
		"list":        {"random"},
		"rnnamespace": {"0"},
		"rnlimit":     {"1"},
		"format":      {"json"},
	}

	var resp randomResponse
	if err := c.get(ctx, "random", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Random) == 0 || resp.Query.Random[0].Title == "" {
		return nil, apperror.Upstream("wikipedia returned no random article", nil)
	}

	title := resp.Query.Random[0].Title
	c.logger.Debug("featured article selected", slog.String("title", title))

	return c.GetArticle(ctx, title)
}

// ArticleURL returns the canonical page URL for title: spaces become
// underscores and the result is path-escaped.
func (c *Client) ArticleURL(title string) string {
	return c.cfg.ArticleURL + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// get performs one GET against the API and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, operation string, params url.Values, out any) error {
	start := time.Now()

	body, err := c.fetch(ctx, params)
	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = metrics.OutcomeRejected
		}
		metrics.RecordUpstream(upstreamName, operation, outcome, time.Since(start))
		c.logger.Warn("wikipedia request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		if outcome == metrics.OutcomeRejected {
			return apperror.Upstream("wikipedia is temporarily unavailable", err)
		}
		return apperror.Upstream("wikipedia request failed", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordUpstream(upstreamName, operation, metrics.OutcomeFailure, time.Since(start))
		return apperror.Upstream("wikipedia returned malformed JSON", err)
	}

	metrics.RecordUpstream(upstreamName, operation, metrics.OutcomeSuccess, time.Since(start))
	return nil
}

// fetch runs the HTTP round trip, through the breaker when one is configured.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	if c.breaker == nil {
		return c.doRequest(ctx, params)
	}
	return c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, params)
	})
}

func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
