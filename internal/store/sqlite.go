// This file implements an SQLite-backed store for shared flows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/Kelp/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if err := migrate(db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		slog.Error("Failed to run migrations", "error", err)
		return nil, err
	}
	slog.Debug("SQLite migrations applied successfully", "db_path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveFlow(ctx context.Context, id string, f models.Flow) error {
	payload, err := encodeFlow(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO shared_flows (id, flow_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		id, f.ID, payload, time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore SaveFlow failed", "error", err, "id", id)
		return fmt.Errorf("failed to insert shared flow %s: %w", id, err)
	}
	slog.Debug("SQLiteStore SaveFlow succeeded", "id", id, "flow_id", f.ID, "stops", len(f.Stops))
	return nil
}

func (s *SQLiteStore) GetFlow(ctx context.Context, id string) (SharedFlow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, payload, created_at FROM shared_flows WHERE id = ?`, id)
	sf, err := scanSharedFlow(row)
	if err != nil {
		if err != ErrFlowNotFound {
			slog.Error("SQLiteStore GetFlow failed", "error", err, "id", id)
		}
		return SharedFlow{}, err
	}
	return sf, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
