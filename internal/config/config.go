// Package config loads the server configuration in layers:
//
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML file (CONFIG_PATH, else ./config.yaml or ./config.yml)
//  3. environment variables, through an explicit mapping table
//
// A .env file in the working directory is read first, so its values take
// part in step 3 like any other variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/sakif/openwiki/internal/auth"
	"github.com/sakif/openwiki/internal/wiki"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Wiki     WikiConfig     `koanf:"wiki"`
	Auth     AuthConfig     `koanf:"auth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins. Empty reflects any origin.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"` // sqlite file, or ":memory:"
	DSN    string `koanf:"dsn"`  // postgres connection string
}

type WikiConfig struct {
	APIURL             string        `koanf:"api_url"`
	ArticleURL         string        `koanf:"article_url"`
	UserAgent          string        `koanf:"user_agent"`
	ConnectTimeout     time.Duration `koanf:"connect_timeout"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
	ThumbnailSize      int           `koanf:"thumbnail_size"`
	ExtractChars       int           `koanf:"extract_chars"`
	ContentPlaceholder string        `koanf:"content_placeholder"`
	BreakerEnabled     bool          `koanf:"breaker_enabled"`
}

type AuthConfig struct {
	BaseURL        string        `koanf:"base_url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	SessionCookie  string        `koanf:"session_cookie"`
	DefaultUserID  string        `koanf:"default_user_id"`

	// RequireSession answers 401 instead of falling back to DefaultUserID.
	RequireSession bool `koanf:"require_session"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

func defaultConfig() *Config {
	w := wiki.DefaultConfig()
	a := auth.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "data/openwiki.db",
		},
		Wiki: WikiConfig{
			APIURL:             w.APIURL,
			ArticleURL:         w.ArticleURL,
			UserAgent:          w.UserAgent,
			ConnectTimeout:     w.ConnectTimeout,
			RequestTimeout:     w.RequestTimeout,
			ThumbnailSize:      w.ThumbnailSize,
			ExtractChars:       w.ExtractChars,
			ContentPlaceholder: w.ContentPlaceholder,
			BreakerEnabled:     w.BreakerEnabled,
		},
		Auth: AuthConfig{
			BaseURL:        a.BaseURL,
			ConnectTimeout: a.ConnectTimeout,
			RequestTimeout: a.RequestTimeout,
			SessionCookie:  a.SessionCookie,
			DefaultUserID:  a.DefaultUserID,
			RequireSession: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		// An explicit path that does not exist is still returned so the
		// load fails loudly instead of silently running on defaults.
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variables (lowercased) to config keys.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"port":                "server.port",
	"http_port":           "server.port",
	"read_timeout":        "server.read_timeout",
	"write_timeout":       "server.write_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	"db_driver": "database.driver",
	"db_path":   "database.path",
	"db_dsn":    "database.dsn",

	"wiki_api_url":             "wiki.api_url",
	"wiki_article_url":         "wiki.article_url",
	"wiki_user_agent":          "wiki.user_agent",
	"wiki_connect_timeout":     "wiki.connect_timeout",
	"wiki_request_timeout":     "wiki.request_timeout",
	"wiki_thumbnail_size":      "wiki.thumbnail_size",
	"wiki_extract_chars":       "wiki.extract_chars",
	"wiki_content_placeholder": "wiki.content_placeholder",
	"wiki_breaker_enabled":     "wiki.breaker_enabled",

	"auth_service_url":     "auth.base_url",
	"auth_connect_timeout": "auth.connect_timeout",
	"auth_request_timeout": "auth.request_timeout",
	"auth_session_cookie":  "auth.session_cookie",
	"auth_default_user_id": "auth.default_user_id",
	"auth_require_session": "auth.require_session",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// splitList accepts both a YAML list and a single comma-separated value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if !c.Server.RateLimitDisabled && (c.Server.RateLimitRequests <= 0 || c.Server.RateLimitWindow <= 0) {
		errs = append(errs, errors.New("server rate limit must be positive unless disabled"))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}

	if c.Wiki.APIURL == "" || c.Wiki.ArticleURL == "" {
		errs = append(errs, errors.New("wiki.api_url and wiki.article_url are required"))
	}
	if c.Wiki.ConnectTimeout <= 0 || c.Wiki.RequestTimeout <= 0 {
		errs = append(errs, errors.New("wiki timeouts must be positive"))
	}

	if c.Auth.BaseURL == "" {
		errs = append(errs, errors.New("auth.base_url is required"))
	}
	if c.Auth.ConnectTimeout <= 0 || c.Auth.RequestTimeout <= 0 {
		errs = append(errs, errors.New("auth timeouts must be positive"))
	}
	if c.Auth.SessionCookie == "" {
		errs = append(errs, errors.New("auth.session_cookie is required"))
	}
	if !c.Auth.RequireSession && c.Auth.DefaultUserID == "" {
		errs = append(errs, errors.New("auth.default_user_id is required unless auth.require_session is set"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// WikiClient converts the wiki section for wiki.New.
func (c *Config) WikiClient() wiki.Config {
	return wiki.Config{
		APIURL:             c.Wiki.APIURL,
		ArticleURL:         c.Wiki.ArticleURL,
		UserAgent:          c.Wiki.UserAgent,
		ConnectTimeout:     c.Wiki.ConnectTimeout,
		RequestTimeout:     c.Wiki.RequestTimeout,
		ThumbnailSize:      c.Wiki.ThumbnailSize,
		ExtractChars:       c.Wiki.ExtractChars,
		ContentPlaceholder: c.Wiki.ContentPlaceholder,
		BreakerEnabled:     c.Wiki.BreakerEnabled,
	}
}

// AuthGateway converts the auth section for auth.NewGateway.
func (c *Config) AuthGateway() auth.Config {
	return auth.Config{
		BaseURL:        c.Auth.BaseURL,
		ConnectTimeout: c.Auth.ConnectTimeout,
		RequestTimeout: c.Auth.RequestTimeout,
		SessionCookie:  c.Auth.SessionCookie,
		DefaultUserID:  c.Auth.DefaultUserID,
	}
}
