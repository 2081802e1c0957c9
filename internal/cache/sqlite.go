package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/raysh454/webscan/internal/logging"
)

//go:embed schema.sql
var schemaFS embed.FS

const sqliteUpsert = `INSERT INTO scans (url, status, result, timestamp, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
    status = excluded.status,
    result = excluded.result,
    timestamp = excluded.timestamp,
    expires_at = excluded.expires_at`

// SQLiteStore keeps records in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// NewSQLiteConnector opens the database file at path, creating parent
// directories as needed.
func NewSQLiteConnector(path string, logger logging.Logger) Connector {
	return func(ctx context.Context) (Store, error) {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("ensure sqlite dir %s: %w", dir, err)
			}
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
		}
		logger.Debug("opened sqlite cache", logging.Field{Key: "path", Value: path})
		return NewSQLiteStore(db), nil
	}
}

// EnsureSchema sets pragmas and applies schema.sql.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for concurrent readers
		"PRAGMA synchronous=NORMAL", // Balance between safety and performance
		"PRAGMA busy_timeout=5000",  // Wait up to 5 seconds on locked database
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsert, rec.URL, rec.Status, string(rec.Result), rec.Timestamp, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert scan %s: %w", rec.URL, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, url string) (Record, error) {
	var (
		rec    Record
		result string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, status, result, timestamp, expires_at FROM scans WHERE url = ?`, url,
	).Scan(&rec.URL, &rec.Status, &result, &rec.Timestamp, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get scan %s: %w", url, err)
	}
	rec.Result = []byte(result)
	return rec, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }
