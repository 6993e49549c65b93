package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

// migrate applies the embedded migrations in dir with the given goose dialect.
func migrate(db *sql.DB, dialect, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func encodeFlow(f models.Flow) (string, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode flow: %w", err)
	}
	return string(payload), nil
}

// scanSharedFlow scans a SharedFlow from a single row of (id, payload, created_at).
func scanSharedFlow(row *sql.Row) (SharedFlow, error) {
	var sf SharedFlow
	var payload string
	if err := row.Scan(&sf.ID, &payload, &sf.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sf, ErrFlowNotFound
		}
		return sf, fmt.Errorf("scan shared flow failed: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &sf.Flow); err != nil {
		return sf, fmt.Errorf("failed to decode shared flow %s: %w", sf.ID, err)
	}
	return sf, nil
}
