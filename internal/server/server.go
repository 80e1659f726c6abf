// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns the server lifecycle (start, graceful stop, store close).
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config → store (sqlite or postgres), wiki.Client, auth.Gateway
//	server.New(...) creates: ArticleService → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/openwiki/internal/auth"
	"github.com/sakif/openwiki/internal/handler"
	"github.com/sakif/openwiki/internal/middleware"
	"github.com/sakif/openwiki/internal/repository"
	"github.com/sakif/openwiki/internal/service"
)

// Config holds the HTTP-facing settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// CORSOrigins lists allowed origins. Empty reflects the caller's origin.
	CORSOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// RequireSession rejects article requests without a readable session.
	RequireSession bool
}

// corsMaxAge is how long browsers may cache a preflight answer, in seconds.
const corsMaxAge = 86400

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the article store. Start closes it after the HTTP server
// has drained, so in-flight requests never see a closed connection.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	store   repository.ArticleRepository
	wiki    handler.WikiClient
	gateway *auth.Gateway
}

// New wires the handlers onto a router. It does not listen; see Start.
func New(cfg Config, store repository.ArticleRepository, wiki handler.WikiClient, gateway *auth.Gateway, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		wiki:    wiki,
		gateway: gateway,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/auth/login             → token from the auth service
// GET    /api/auth/user              → user info for a bearer token
// GET    /api/auth/validate          → {"valid": bool}
// GET    /api/wikipedia/search       → live search          (rate limited)
// GET    /api/wikipedia/article/{t}  → live article         (rate limited)
// GET    /api/wikipedia/featured     → random article       (rate limited)
// GET    /api/articles               → caller's saved articles
// POST   /api/articles               → save an article
// GET    /api/articles/{id}          → one saved article
// PUT    /api/articles/{id}          → update a saved article
// DELETE /api/articles/{id}          → delete a saved article
// GET    /api/test, /api/test/db     → liveness, database check
// GET    /metrics                    → Prometheus
//
// MIDDLEWARE ORDER MATTERS:
// RequestID and RealIP run first so the log line and the rate limiter see
// them; Recoverer sits inside Logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.cors())

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	articleService := service.NewArticleService(s.store, s.logger)

	authHandler := handler.NewAuthHandler(s.gateway, s.logger)
	wikiHandler := handler.NewWikiHandler(s.wiki, s.logger)
	articleHandler := handler.NewArticleHandler(articleService, s.logger)
	healthHandler := handler.NewHealthHandler(articleService, s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.HandleLogin)
			r.Get("/user", authHandler.HandleUser)
			r.Get("/validate", authHandler.HandleValidate)
		})

		r.Route("/wikipedia", func(r chi.Router) {
			r.Use(s.rateLimit())
			r.Get("/search", wikiHandler.HandleSearch)
			r.Get("/article/{title}", wikiHandler.HandleArticle)
			r.Get("/featured", wikiHandler.HandleFeatured)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Use(auth.Identity(s.gateway, s.config.RequireSession, s.logger))
			r.Get("/", articleHandler.HandleList)
			r.Post("/", articleHandler.HandleCreate)
			r.Get("/{id}", articleHandler.HandleGet)
			r.Put("/{id}", articleHandler.HandleUpdate)
			r.Delete("/{id}", articleHandler.HandleDelete)
		})

		r.Get("/test", healthHandler.HandleTest)
		r.Get("/test/db", healthHandler.HandleTestDB)
	})

	r.Handle("/metrics", promhttp.Handler())
}

// cors allows the listed origins, or reflects any origin when none are
// configured. Credentials are always allowed so the session cookie travels.
func (s *Server) cors() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}
	if len(s.config.CORSOrigins) > 0 {
		opts.AllowedOrigins = s.config.CORSOrigins
	} else {
		opts.AllowOriginFunc = func(_ *http.Request, origin string) bool { return origin != "" }
	}
	return cors.Handler(opts)
}

// rateLimit limits each client IP on the Wikipedia routes, which fan out to
// a third-party API.
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.config.RateLimitRequests,
		s.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
		}),
	)
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait for in-flight requests (ShutdownTimeout)
//  3. close the article store
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
