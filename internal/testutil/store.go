package testutil

import (
	"context"
	"sync"

	"github.com/raysh454/webscan/internal/cache"
)

// ─── Cache store ───────────────────────────────────────────────────────

// DummyStore implements cache.Store in memory. Setting GetErr or UpsertErr
// makes the corresponding call fail.
type DummyStore struct {
	mu        sync.Mutex
	records   map[string]cache.Record
	GetErr    error
	UpsertErr error
	PingErr   error
	upserts   int
}

func NewDummyStore() *DummyStore {
	return &DummyStore{records: map[string]cache.Record{}}
}

func (s *DummyStore) EnsureSchema(context.Context) error { return nil }

func (s *DummyStore) Upsert(_ context.Context, rec cache.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.upserts++
	s.records[rec.URL] = rec
	return nil
}

func (s *DummyStore) Get(_ context.Context, url string) (cache.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return cache.Record{}, s.GetErr
	}
	rec, ok := s.records[url]
	if !ok {
		return cache.Record{}, cache.ErrNotFound
	}
	return rec, nil
}

func (s *DummyStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

func (s *DummyStore) Close() error { return nil }

// Upserts returns the number of successful writes.
func (s *DummyStore) Upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// Record returns the stored record for url.
func (s *DummyStore) Record(url string) (cache.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	return rec, ok
}

// Expire moves the expiry of url's record to expiresAt (epoch ms).
func (s *DummyStore) Expire(url string, expiresAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[url]; ok {
		rec.ExpiresAt = expiresAt
		s.records[url] = rec
	}
}

// Connector returns a cache.Connector that always hands out s.
func (s *DummyStore) Connector() cache.Connector {
	return func(context.Context) (cache.Store, error) { return s, nil }
}

// SetUpsertErr switches write failures on or off.
func (s *DummyStore) SetUpsertErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertErr = err
}
