// Package config loads process-level configuration for Kelp.
//
// Values come from a .env file (if present), then the environment. Command line flags in
// cmd/Kelp may override them afterwards. Credentials are read exactly once per process.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/BTreeMap/Kelp/internal/util"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvOpenAIModel       = "OPENAI_MODEL"
	EnvYelpKey           = "YELP_API_KEY"
	EnvAPIAddr           = "API_ADDR"
	EnvDatabaseURL       = "DATABASE_URL"
	EnvTaxonomyFile      = "KELP_TAXONOMY_FILE"
	EnvWatchTaxonomy     = "KELP_WATCH_TAXONOMY"
	EnvSearchTimeout     = "KELP_SEARCH_TIMEOUT"
	EnvCompletionTimeout = "KELP_COMPLETION_TIMEOUT"
	EnvAllowedOrigins    = "KELP_ALLOWED_ORIGINS"
	EnvTwilioAccountSID  = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken   = "TWILIO_AUTH_TOKEN"
	EnvTwilioFromNumber  = "TWILIO_FROM_NUMBER"
	EnvShareBaseURL      = "KELP_SHARE_BASE_URL"
)

// Defaults applied when the environment leaves a value unset.
const (
	DefaultAPIAddr           = ":8080"
	DefaultSearchTimeout     = 8 * time.Second
	DefaultCompletionTimeout = 20 * time.Second
)

// MissingCredentialError reports a required credential that was not configured.
// It is a configuration problem, never a provider or runtime failure.
type MissingCredentialError struct {
	Name    string // environment variable name
	Service string // human readable service name
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s not configured: %s is not set", e.Service, e.Name)
}

// Config holds environment configuration.
type Config struct {
	OpenAIKey         string
	OpenAIBaseURL     string
	OpenAIModel       string
	YelpKey           string
	APIAddr           string
	DatabaseURL       string
	TaxonomyFile      string
	WatchTaxonomy     bool
	SearchTimeout     time.Duration
	CompletionTimeout time.Duration
	AllowedOrigins    string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	ShareBaseURL      string
}

var (
	loadOnce sync.Once
	loaded   Config
)

// Load reads the configuration once per process and returns the cached copy afterwards.
func Load() Config {
	loadOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("Config.Load: no .env file loaded", "error", err)
		} else {
			slog.Debug("Config.Load: loaded .env file")
		}
		loaded = FromEnv()
	})
	return loaded
}

// FromEnv builds a Config from the current environment without caching.
func FromEnv() Config {
	cfg := Config{
		OpenAIKey:         os.Getenv(EnvOpenAIKey),
		OpenAIBaseURL:     os.Getenv(EnvOpenAIBaseURL),
		OpenAIModel:       os.Getenv(EnvOpenAIModel),
		YelpKey:           os.Getenv(EnvYelpKey),
		APIAddr:           os.Getenv(EnvAPIAddr),
		DatabaseURL:       os.Getenv(EnvDatabaseURL),
		TaxonomyFile:      os.Getenv(EnvTaxonomyFile),
		WatchTaxonomy:     util.ParseBoolEnv(EnvWatchTaxonomy, false),
		SearchTimeout:     util.ParseDurationEnv(EnvSearchTimeout, DefaultSearchTimeout),
		CompletionTimeout: util.ParseDurationEnv(EnvCompletionTimeout, DefaultCompletionTimeout),
		AllowedOrigins:    os.Getenv(EnvAllowedOrigins),
		TwilioAccountSID:  os.Getenv(EnvTwilioAccountSID),
		TwilioAuthToken:   os.Getenv(EnvTwilioAuthToken),
		TwilioFromNumber:  os.Getenv(EnvTwilioFromNumber),
		ShareBaseURL:      os.Getenv(EnvShareBaseURL),
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = DefaultAPIAddr
	}

	slog.Debug("environment variables loaded",
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"OPENAI_BASE_URL", cfg.OpenAIBaseURL,
		"OPENAI_MODEL", cfg.OpenAIModel,
		"YELP_API_KEY_SET", cfg.YelpKey != "",
		"API_ADDR", cfg.APIAddr,
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"KELP_TAXONOMY_FILE", cfg.TaxonomyFile,
		"KELP_WATCH_TAXONOMY", cfg.WatchTaxonomy,
		"TWILIO_ACCOUNT_SID_SET", cfg.TwilioAccountSID != "",
		"KELP_SHARE_BASE_URL", cfg.ShareBaseURL)
	return cfg
}

// RequireOpenAIKey returns the LLM key or a *MissingCredentialError.
func (c Config) RequireOpenAIKey() (string, error) {
	if c.OpenAIKey == "" {
		return "", &MissingCredentialError{Name: EnvOpenAIKey, Service: "AI assistant"}
	}
	return c.OpenAIKey, nil
}

// RequireYelpKey returns the venue search key or a *MissingCredentialError.
func (c Config) RequireYelpKey() (string, error) {
	if c.YelpKey == "" {
		return "", &MissingCredentialError{Name: EnvYelpKey, Service: "Yelp API"}
	}
	return c.YelpKey, nil
}
