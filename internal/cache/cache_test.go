package cache_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/webscan/internal/cache"
	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/scanerr"
	"github.com/raysh454/webscan/internal/testutil"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func completedResult(url string) *model.ScanResult {
	return &model.ScanResult{
		Status:      model.StatusCompleted,
		URL:         url,
		OriginalURL: url,
		Timestamp:   1714564800000,
		Results: model.ScanResults{
			Performance:   model.NewCategoryResult(nil, model.PerformanceMetrics{PerformanceScore: 91}),
			Accessibility: model.NewCategoryResult([]model.Issue{{Type: model.IssueError, Title: "Image Alt", Element: "N/A"}}, model.AccessibilityMetrics{AccessibilityScore: 70}),
		},
	}
}

// memStore is an in-memory Store whose failures can be switched on.
type memStore struct {
	mu       sync.Mutex
	records  map[string]cache.Record
	failGet  error
	failPut  error
	failPing error
	closed   atomic.Int32
}

func newMemStore() *memStore { return &memStore{records: map[string]cache.Record{}} }

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) Upsert(_ context.Context, rec cache.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	m.records[rec.URL] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, url string) (cache.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return cache.Record{}, m.failGet
	}
	rec, ok := m.records[url]
	if !ok {
		return cache.Record{}, cache.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failPing
}

func (m *memStore) Close() error {
	m.closed.Add(1)
	return nil
}

// countingConnector hands out stores from next, counting connects.
type countingConnector struct {
	mu   sync.Mutex
	n    int
	next func(n int) (cache.Store, error)
}

func (c *countingConnector) Connect(context.Context) (cache.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.next(c.n)
}

func (c *countingConnector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func testConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Expiration = time.Hour
	cfg.ProbeInterval = 0
	return cfg
}

func TestResultCache_SQLiteRoundTripAndExpiry(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "scans.db")
	clk := newClock()
	c := cache.New(cache.NewSQLiteConnector(path, &testutil.DummyLogger{}), testConfig(), &testutil.DummyLogger{}, cache.WithClock(clk.Now))
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	in := completedResult("https://example.com")
	require.NoError(t, c.Put(ctx, "https://example.com", in))

	got, ok, err := c.Get(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, got)

	_, ok, _ = c.Get(ctx, "https://example.com/")
	assert.False(t, ok, "lookup is by exact key")

	clk.Advance(time.Hour - time.Millisecond)
	_, ok, _ = c.Get(ctx, "https://example.com")
	assert.True(t, ok, "still fresh just before expiry")

	clk.Advance(time.Millisecond)
	_, ok, err = c.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok, "stale at expiry")

	entry, err := c.Lookup(ctx, "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, entry, "stale rows are kept")
	assert.False(t, entry.Fresh)
	assert.True(t, entry.ExpiresAt.Equal(clk.Now()))

	// A rescan replaces the row and renews it.
	in.Results.Performance.Metrics.PerformanceScore = 55
	require.NoError(t, c.Put(ctx, "https://example.com", in))
	got, ok, err = c.Get(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 55, got.Results.Performance.Metrics.PerformanceScore)
}

func TestResultCache_RejectsFailedResults(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	c := cache.New(func(context.Context) (cache.Store, error) { return store, nil }, testConfig(), &testutil.DummyLogger{})

	err := c.Put(context.Background(), "u", &model.ScanResult{Status: model.StatusFailed})
	var se *scanerr.StorageError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, store.records)
}

func TestResultCache_ReconnectsAfterFailure(t *testing.T) {
	t.Parallel()
	first, second := newMemStore(), newMemStore()
	first.failGet = errors.New("connection reset")
	conn := &countingConnector{next: func(n int) (cache.Store, error) {
		if n == 1 {
			return first, nil
		}
		return second, nil
	}}
	logger := &testutil.DummyLogger{}
	c := cache.New(conn.Connect, testConfig(), logger)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "u")
	var se *scanerr.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "read", se.Op)
	assert.False(t, ok)
	assert.Equal(t, int32(1), first.closed.Load(), "failed handle must be closed")
	assert.True(t, logger.HasWarn("dropping cache store handle"))

	require.NoError(t, c.Put(ctx, "u", completedResult("u")))
	assert.Equal(t, 2, conn.Count())
	_, ok, err = c.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, conn.Count(), "healthy handle is reused")
}

func TestResultCache_ConnectFailure(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	conn := &countingConnector{next: func(n int) (cache.Store, error) {
		if n == 1 {
			return nil, errors.New("dial tcp: refused")
		}
		return store, nil
	}}
	c := cache.New(conn.Connect, testConfig(), &testutil.DummyLogger{})

	err := c.Put(context.Background(), "u", completedResult("u"))
	var se *scanerr.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "connect", se.Op)

	require.NoError(t, c.Put(context.Background(), "u", completedResult("u")))
}

func TestResultCache_UndecodableRecordIsMiss(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.records["u"] = cache.Record{URL: "u", Status: model.StatusCompleted, Result: []byte(`{"version":9,"result":{}}`), ExpiresAt: 1 << 62}
	store.records["pending"] = cache.Record{URL: "pending", Status: "running", Result: []byte(`{}`), ExpiresAt: 1 << 62}
	c := cache.New(func(context.Context) (cache.Store, error) { return store, nil }, testConfig(), &testutil.DummyLogger{})

	_, ok, err := c.Get(context.Background(), "u")
	var se *scanerr.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "decode", se.Op)
	assert.False(t, ok)
	assert.Zero(t, store.closed.Load(), "bad data is not a connection failure")

	_, ok, err = c.Get(context.Background(), "pending")
	assert.NoError(t, err)
	assert.False(t, ok, "only completed records are served")
}

func TestResultCache_BadRedisFieldsKeepHandle(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	conn := &countingConnector{next: func(int) (cache.Store, error) {
		return cache.NewRedisStore(db, "p:"), nil
	}}
	logger := &testutil.DummyLogger{}
	c := cache.New(conn.Connect, testConfig(), logger)
	ctx := context.Background()

	mock.ExpectHGetAll("p:u").SetVal(map[string]string{"status": "completed", "timestamp": "soon", "expires_at": "20"})
	_, ok, err := c.Get(ctx, "u")
	var se *scanerr.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "decode", se.Op)
	assert.False(t, ok)
	assert.False(t, logger.HasWarn("dropping cache store handle"), "a bad record is not a connection failure")

	mock.ExpectHGetAll("p:other").SetVal(map[string]string{})
	_, ok, err = c.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, conn.Count(), "the handle is reused after a bad record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultCache_ProbeDropsDeadHandle(t *testing.T) {
	t.Parallel()
	dead, healthy := newMemStore(), newMemStore()
	dead.failPing = errors.New("broken pipe")
	conn := &countingConnector{next: func(n int) (cache.Store, error) {
		if n == 1 {
			return dead, nil
		}
		return healthy, nil
	}}
	cfg := testConfig()
	cfg.ProbeInterval = 5 * time.Millisecond
	c := cache.New(conn.Connect, cfg, &testutil.DummyLogger{})

	require.NoError(t, c.Put(context.Background(), "u", completedResult("u")))
	c.StartProbe(context.Background())

	require.Eventually(t, func() bool { return dead.closed.Load() == 1 && conn.Count() >= 2 },
		2*time.Second, 5*time.Millisecond, "probe should drop the dead handle and reconnect")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), healthy.closed.Load())
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	cache.RegisterDefaultBackends()
	assert.Subset(t, cache.ListBackends(), []string{"postgres", "redis", "sqlite"})

	_, err := cache.NewConnector(cache.Config{Backend: "memcached"}, &testutil.DummyLogger{})
	assert.ErrorContains(t, err, "not registered")

	_, err = cache.NewConnector(cache.Config{Backend: "Postgres"}, &testutil.DummyLogger{})
	assert.ErrorContains(t, err, "requires a DSN")

	_, err = cache.NewConnector(cache.Config{Backend: "redis", DSN: "not a url"}, &testutil.DummyLogger{})
	assert.Error(t, err)

	connect, err := cache.NewConnector(cache.Config{DSN: filepath.Join(t.TempDir(), "x.db")}, &testutil.DummyLogger{})
	require.NoError(t, err)
	store, err := connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.Close())
}
