// This file implements a PostgreSQL-backed store for shared flows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Kelp/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if err := migrate(db, "postgres", "migrations/postgres"); err != nil {
		db.Close()
		slog.Error("Failed to run migrations", "error", err)
		return nil, err
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveFlow(ctx context.Context, id string, f models.Flow) error {
	payload, err := encodeFlow(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO shared_flows (id, flow_id, payload, created_at) VALUES ($1, $2, $3, $4)`,
		id, f.ID, payload, time.Now().UTC())
	if err != nil {
		slog.Error("PostgresStore SaveFlow failed", "error", err, "id", id)
		return fmt.Errorf("failed to insert shared flow %s: %w", id, err)
	}
	slog.Debug("PostgresStore SaveFlow succeeded", "id", id, "flow_id", f.ID, "stops", len(f.Stops))
	return nil
}

func (s *PostgresStore) GetFlow(ctx context.Context, id string) (SharedFlow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, payload::text, created_at FROM shared_flows WHERE id = $1`, id)
	sf, err := scanSharedFlow(row)
	if err != nil {
		if err != ErrFlowNotFound {
			slog.Error("PostgresStore GetFlow failed", "error", err, "id", id)
		}
		return SharedFlow{}, err
	}
	return sf, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
