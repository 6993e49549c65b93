// Package store persists shared flow snapshots.
//
// It includes an in-memory store and SQL backends for SQLite and PostgreSQL. Flows are never
// stored implicitly; only an explicit share creates a snapshot.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/Kelp/internal/models"
)

// ErrFlowNotFound is returned when no snapshot exists for a share id.
var ErrFlowNotFound = errors.New("shared flow not found")

// SharedFlow is one stored snapshot.
type SharedFlow struct {
	ID        string
	Flow      models.Flow
	CreatedAt time.Time
}

// FlowStore saves and loads shared flow snapshots.
type FlowStore interface {
	SaveFlow(ctx context.Context, id string, f models.Flow) error
	GetFlow(ctx context.Context, id string) (SharedFlow, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL URLs and key/value connection strings and
// "sqlite3" for anything else, which is treated as a file path.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(d, "host=") || strings.Contains(d, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open picks a backend from the DSN; an empty DSN gives the in-memory store.
func Open(dsn string) (FlowStore, error) {
	switch {
	case strings.TrimSpace(dsn) == "":
		slog.Debug("store.Open: no database DSN provided, using in-memory store")
		return NewInMemoryStore(), nil
	case DetectDSNType(dsn) == "postgres":
		slog.Debug("store.Open: detected PostgreSQL DSN", "dsn_set", true)
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Debug("store.Open: detected SQLite DSN", "db_path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// InMemoryStore keeps snapshots in a map. Contents are lost on restart.
type InMemoryStore struct {
	mu    sync.RWMutex
	flows map[string]SharedFlow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flows: make(map[string]SharedFlow)}
}

func (s *InMemoryStore) SaveFlow(_ context.Context, id string, f models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[id] = SharedFlow{ID: id, Flow: f.Clone(), CreatedAt: time.Now().UTC()}
	return nil
}

func (s *InMemoryStore) GetFlow(_ context.Context, id string) (SharedFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.flows[id]
	if !ok {
		return SharedFlow{}, ErrFlowNotFound
	}
	sf.Flow = sf.Flow.Clone()
	return sf, nil
}

func (s *InMemoryStore) Close() error { return nil }
