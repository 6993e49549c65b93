// Package api provides the HTTP server for Kelp.
//
// It exposes endpoints to generate flows, run chat edits, apply direct edits and share flows.
// Each request is independent; flows travel in request bodies and only an explicit share
// persists one.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/Kelp/internal/chat"
	"github.com/BTreeMap/Kelp/internal/itinerary"
	"github.com/BTreeMap/Kelp/internal/metrics"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/store"
)

// Server timing and size limits.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	// DefaultWriteTimeout leaves room for a plan completion plus venue searches.
	DefaultWriteTimeout = 60 * time.Second
	MaxRequestBodyBytes = 1 << 20
)

// FlowGenerator builds a flow for a scenario.
type FlowGenerator interface {
	Generate(ctx context.Context, sc models.Scenario) models.Flow
}

// ChatResponder runs one chat turn.
type ChatResponder interface {
	Respond(ctx context.Context, message string, f *models.Flow, history []models.ChatMessage) chat.Reply
}

// FlowSender texts a flow to a crew.
type FlowSender interface {
	SendFlow(ctx context.Context, f models.Flow, link string, recipients []string) (models.SendFlowResponse, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	AllowedOrigins []string
	ShareBaseURL   string
	Engine         itinerary.Engine
	SessionTTL     time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAllowedOrigins restricts CORS to the given origins. Empty means any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *Opts) {
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				o.AllowedOrigins = append(o.AllowedOrigins, origin)
			}
		}
	}
}

// WithShareBaseURL sets the prefix used to build share links in texts.
func WithShareBaseURL(u string) Option {
	return func(o *Opts) { o.ShareBaseURL = strings.TrimRight(u, "/") }
}

// WithEngine sets the mutation engine used by the direct edit endpoints.
func WithEngine(e itinerary.Engine) Option {
	return func(o *Opts) { o.Engine = e }
}

// WithSessionTTL sets how long chat sequence numbers are remembered.
func WithSessionTTL(d time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = d }
}

// Server holds the dependencies of the HTTP handlers. A nil generator, responder or sender
// means the backing service is not configured; the matching endpoints report that instead
// of failing at startup.
type Server struct {
	generator FlowGenerator
	responder ChatResponder
	sender    FlowSender
	st        store.FlowStore
	engine    itinerary.Engine
	sequencer *chat.Sequencer

	addr           string
	allowedOrigins []string
	shareBaseURL   string
}

// NewServer creates a server. st must not be nil.
func NewServer(generator FlowGenerator, responder ChatResponder, st store.FlowStore, sender FlowSender, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("NewServer invoked",
		"addr", cfg.Addr,
		"generator_set", generator != nil,
		"responder_set", responder != nil,
		"sender_set", sender != nil,
		"allowed_origins", len(cfg.AllowedOrigins),
		"preserve_times", cfg.Engine.PreserveTimes)

	return &Server{
		generator:      generator,
		responder:      responder,
		sender:         sender,
		st:             st,
		engine:         cfg.Engine,
		sequencer:      chat.NewSequencer(cfg.SessionTTL),
		addr:           cfg.Addr,
		allowedOrigins: cfg.AllowedOrigins,
		shareBaseURL:   cfg.ShareBaseURL,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate-flow", s.generateFlowHandler)
	mux.HandleFunc("POST /chat", s.chatHandler)
	mux.HandleFunc("POST /flows/edit", s.editFlowHandler)
	mux.HandleFunc("POST /flows/apply", s.applyChangesHandler)
	mux.HandleFunc("POST /flows", s.shareFlowHandler)
	mux.HandleFunc("GET /flows/{id}", s.getSharedFlowHandler)
	mux.HandleFunc("POST /flows/{id}/send", s.sendFlowHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	return s.corsMiddleware(s.metricsMiddleware(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: Kelp API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: listener failed", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
			return err
		}
		return nil
	}
}
