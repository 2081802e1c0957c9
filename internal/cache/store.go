package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no record exists for a URL.
var ErrNotFound = errors.New("cache record not found")

// ErrUndecodable marks a record the backend returned but could not parse.
// The connection is fine; only that record is bad.
var ErrUndecodable = errors.New("undecodable cache record")

// Record is one persisted scan per URL. Result holds the versioned result
// document; times are epoch milliseconds.
type Record struct {
	URL       string
	Status    string
	Result    []byte
	Timestamp int64
	ExpiresAt int64
}

// Store is a storage backend for scan records. Implementations must be safe
// for concurrent use.
type Store interface {
	// EnsureSchema creates whatever the backend needs. It is idempotent.
	EnsureSchema(ctx context.Context) error

	// Upsert inserts or replaces the record for rec.URL in one statement.
	Upsert(ctx context.Context, rec Record) error

	// Get returns the record for url, or ErrNotFound.
	Get(ctx context.Context, url string) (Record, error)

	Ping(ctx context.Context) error

	Close() error
}

// Connector opens a new store handle.
type Connector func(ctx context.Context) (Store, error)
