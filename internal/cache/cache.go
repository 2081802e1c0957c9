// Package cache stores the latest completed scan per URL and decides whether
// it is still fresh.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/scanerr"
)

// Entry is a decoded cache record.
type Entry struct {
	Result    *model.ScanResult
	ScannedAt time.Time
	ExpiresAt time.Time
	// Fresh is true while the lookup time is before ExpiresAt.
	Fresh bool
}

// ResultCache fronts a Store. The store handle is opened on first use and
// dropped after any failed operation; the next call reconnects.
type ResultCache struct {
	connect Connector
	cfg     Config
	logger  logging.Logger
	now     func() time.Time

	mu     sync.Mutex
	store  Store
	closed bool

	probeOnce sync.Once
	probeStop context.CancelFunc
	probeDone chan struct{}
}

type Option func(*ResultCache)

// WithClock replaces time.Now for freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func New(connect Connector, cfg Config, logger logging.Logger, opts ...Option) *ResultCache {
	c := &ResultCache{
		connect: connect,
		cfg:     cfg,
		logger:  logger.With(logging.Field{Key: "component", Value: "cache"}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var errClosed = errors.New("cache closed")

// handle returns the live store, connecting and ensuring the schema when
// there is none.
func (c *ResultCache) handle(ctx context.Context) (Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed
	}
	if c.store != nil {
		return c.store, nil
	}
	s, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	c.logger.Info("cache store connected", logging.Field{Key: "backend", Value: c.cfg.Backend})
	c.store = s
	return s, nil
}

// invalidate drops s if it is still the current handle.
func (c *ResultCache) invalidate(s Store, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != s {
		return
	}
	c.store = nil
	c.logger.Warn("dropping cache store handle", logging.Field{Key: "error", Value: cause})
	if err := s.Close(); err != nil {
		c.logger.Debug("close after failure", logging.Field{Key: "error", Value: err})
	}
}

// Lookup returns the completed record for url whether or not it is fresh.
// A missing or non-completed record is (nil, nil). Failures are
// *scanerr.StorageError.
func (c *ResultCache) Lookup(ctx context.Context, url string) (*Entry, error) {
	s, err := c.handle(ctx)
	if err != nil {
		return nil, &scanerr.StorageError{Op: "connect", Err: err}
	}
	rec, err := s.Get(ctx, url)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if errors.Is(err, ErrUndecodable) {
		return nil, &scanerr.StorageError{Op: "decode", Err: err}
	}
	if err != nil {
		c.invalidate(s, err)
		return nil, &scanerr.StorageError{Op: "read", Err: err}
	}
	if rec.Status != model.StatusCompleted {
		return nil, nil
	}
	result, err := model.DecodeResult(rec.Result)
	if err != nil {
		return nil, &scanerr.StorageError{Op: "decode", Err: err}
	}
	now := c.now()
	expires := time.UnixMilli(rec.ExpiresAt)
	return &Entry{
		Result:    result,
		ScannedAt: time.UnixMilli(rec.Timestamp),
		ExpiresAt: expires,
		Fresh:     now.Before(expires),
	}, nil
}

// Get returns the cached result for url when it is completed and fresh.
func (c *ResultCache) Get(ctx context.Context, url string) (*model.ScanResult, bool, error) {
	e, err := c.Lookup(ctx, url)
	if err != nil || e == nil {
		return nil, false, err
	}
	if !e.Fresh {
		c.logger.Debug("cache entry stale", logging.Field{Key: "url", Value: url}, logging.Field{Key: "expired_at", Value: e.ExpiresAt.UTC().Format(time.RFC3339)})
		return nil, false, nil
	}
	return e.Result, true, nil
}

// Put stores a completed result for url, fresh for the configured
// expiration from now. Failed results are rejected.
func (c *ResultCache) Put(ctx context.Context, url string, result *model.ScanResult) error {
	if result == nil || result.Status != model.StatusCompleted {
		return &scanerr.StorageError{Op: "write", Err: errors.New("only completed results are cached")}
	}
	doc, err := model.EncodeResult(result)
	if err != nil {
		return &scanerr.StorageError{Op: "encode", Err: err}
	}
	s, err := c.handle(ctx)
	if err != nil {
		return &scanerr.StorageError{Op: "connect", Err: err}
	}
	now := c.now()
	rec := Record{
		URL:       url,
		Status:    result.Status,
		Result:    doc,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(c.cfg.Expiration).UnixMilli(),
	}
	if err := s.Upsert(ctx, rec); err != nil {
		c.invalidate(s, err)
		return &scanerr.StorageError{Op: "write", Err: err}
	}
	return nil
}

// Ping checks the store, connecting if needed. A failed ping drops the
// handle.
func (c *ResultCache) Ping(ctx context.Context) error {
	s, err := c.handle(ctx)
	if err != nil {
		return &scanerr.StorageError{Op: "connect", Err: err}
	}
	if err := s.Ping(ctx); err != nil {
		c.invalidate(s, err)
		return &scanerr.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// StartProbe pings the store every ProbeInterval until ctx is done or the
// cache is closed. Only the first call starts a probe.
func (c *ResultCache) StartProbe(ctx context.Context) {
	if c.cfg.ProbeInterval <= 0 {
		return
	}
	c.probeOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			cancel()
			return
		}
		c.probeStop, c.probeDone = cancel, done
		c.mu.Unlock()

		go func() {
			defer close(done)
			t := time.NewTicker(c.cfg.ProbeInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					pctx, pcancel := context.WithTimeout(ctx, c.cfg.ProbeInterval)
					if err := c.Ping(pctx); err != nil && !errors.Is(err, errClosed) {
						c.logger.Warn("cache probe failed", logging.Field{Key: "error", Value: err})
					}
					pcancel()
				}
			}
		}()
	})
}

// Close stops the probe and closes the store. It is idempotent.
func (c *ResultCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stop, done := c.probeStop, c.probeDone
	s := c.store
	c.store = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	if s != nil {
		return s.Close()
	}
	return nil
}
