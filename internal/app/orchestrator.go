package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/raysh454/webscan/internal/cache"
	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/normalizer"
	"github.com/raysh454/webscan/internal/queue"
	"github.com/raysh454/webscan/internal/scanerr"
	"github.com/raysh454/webscan/internal/utils"
)

// Scanner produces the raw audit report of one URL. *executor.Executor is
// the production implementation.
type Scanner interface {
	ExecuteScan(ctx context.Context, url string) (*model.RawAuditReport, error)
}

// ResultCache is the part of *cache.ResultCache the orchestrator uses.
type ResultCache interface {
	Lookup(ctx context.Context, url string) (*cache.Entry, error)
	Put(ctx context.Context, url string, result *model.ScanResult) error
}

// Orchestrator answers scan requests: from the cache when a fresh result
// exists, otherwise by queueing a scan, normalizing its report and writing
// the result back.
type Orchestrator struct {
	cfg     *Config
	cache   ResultCache
	queue   *queue.Queue
	scanner Scanner
	logger  logging.Logger
	now     func() time.Time

	flight singleflight.Group

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	closed     bool
}

// NewOrchestrator ties together config, cache, queue and scanner.
func NewOrchestrator(cfg *Config, results ResultCache, q *queue.Queue, scanner Scanner, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:        cfg,
		cache:      results,
		queue:      q,
		scanner:    scanner,
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		now:        time.Now,
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
	}
}

// scanOutcome is what one ScanURL call produced.
type scanOutcome struct {
	Result *model.ScanResult
	Cached bool
	// Changes is set when the scan replaced a stale cached result.
	Changes *ChangeSummary
}

// ScanURL returns the scan result of url, which must already be validated
// (see utils.ValidateScanURL). The browser loads url exactly as given; only
// the cache lookup goes through utils.CacheKey. Failures are
// *scanerr.ScanError.
//
// An admitted scan runs to completion and is cached even when ctx is
// canceled; ctx only bounds how long the caller waits.
func (o *Orchestrator) ScanURL(ctx context.Context, url string) (*model.ScanResult, error) {
	out, err := o.scanURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (o *Orchestrator) scanURL(ctx context.Context, url string) (*scanOutcome, error) {
	log := o.logger.With(logging.Field{Key: "url", Value: url})

	var previous *model.ScanResult
	entry, err := o.cache.Lookup(ctx, o.cacheKey(url))
	switch {
	case err != nil:
		log.Warn("cache read failed, scanning without cache", logging.Field{Key: "error", Value: err})
	case entry != nil && entry.Fresh:
		log.Info("serving cached result", logging.Field{Key: "scanned_at", Value: entry.ScannedAt.UTC().Format(time.RFC3339)})
		return &scanOutcome{Result: requestedAs(entry.Result, url), Cached: true}, nil
	case entry != nil:
		previous = entry.Result
	}

	select {
	case r := <-o.start(ctx, url, previous):
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*scanOutcome), nil
	case <-ctx.Done():
		return nil, &scanerr.ScanError{URL: url, Err: ctx.Err()}
	}
}

// start launches the scan of url detached from ctx's cancellation. With
// DedupInFlight, concurrent callers for the same url share one scan.
func (o *Orchestrator) start(ctx context.Context, url string, previous *model.ScanResult) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)
	fn := func() (any, error) {
		return o.execute(detached, url, previous)
	}
	if o.cfg.DedupInFlight {
		return o.flight.DoChan(url, fn)
	}

	ch := make(chan singleflight.Result, 1)
	go func() {
		v, err := fn()
		ch <- singleflight.Result{Val: v, Err: err}
	}()
	return ch
}

// execute runs one uncached scan: queue, executor, normalizer, cache write.
func (o *Orchestrator) execute(ctx context.Context, url string, previous *model.ScanResult) (*scanOutcome, error) {
	log := o.logger.With(logging.Field{Key: "url", Value: url})
	started := o.now()

	report, err := queue.Run(ctx, o.queue, func(ctx context.Context) (*model.RawAuditReport, error) {
		return o.scanner.ExecuteScan(ctx, url)
	})
	if err != nil {
		log.Error("scan failed", logging.Field{Key: "error", Value: err})
		return nil, &scanerr.ScanError{URL: url, Err: err}
	}

	result := &model.ScanResult{
		Status:      model.StatusCompleted,
		URL:         report.ResolvedURL(url),
		OriginalURL: url,
		Results:     normalizer.BuildResults(report, o.cfg.Normalizer),
		Timestamp:   o.now().UnixMilli(),
	}
	log.Info("scan completed",
		logging.Field{Key: "duration_ms", Value: o.now().Sub(started).Milliseconds()},
		logging.Field{Key: "performance_score", Value: result.Results.Performance.Metrics.PerformanceScore},
		logging.Field{Key: "accessibility_score", Value: result.Results.Accessibility.Metrics.AccessibilityScore},
		logging.Field{Key: "errors", Value: result.Results.Performance.TotalErrors + result.Results.Accessibility.TotalErrors},
		logging.Field{Key: "alerts", Value: result.Results.Performance.TotalAlerts + result.Results.Accessibility.TotalAlerts})

	if err := o.cache.Put(ctx, o.cacheKey(url), result); err != nil {
		log.Warn("failed to cache scan result", logging.Field{Key: "error", Value: err})
	}

	out := &scanOutcome{Result: result}
	if previous != nil {
		out.Changes = SummarizeChanges(previous, result)
		if !out.Changes.Empty() {
			log.Info("scan result changed since last scan",
				logging.Field{Key: "added", Value: out.Changes.Added},
				logging.Field{Key: "resolved", Value: out.Changes.Resolved},
				logging.Field{Key: "performance_delta", Value: out.Changes.PerformanceScoreDelta},
				logging.Field{Key: "accessibility_delta", Value: out.Changes.AccessibilityScoreDelta})
		}
	}
	return out, nil
}

func (o *Orchestrator) cacheKey(url string) string {
	return utils.CacheKey(url, o.cfg.CacheKey)
}

// requestedAs returns cached with OriginalURL set to the URL of this
// request, which may differ from the one that populated the cache entry.
func requestedAs(cached *model.ScanResult, url string) *model.ScanResult {
	if cached == nil || cached.OriginalURL == url {
		return cached
	}
	r := *cached
	r.OriginalURL = url
	return &r
}

// QueueStats reports the scan queue occupancy.
func (o *Orchestrator) QueueStats() queue.Stats {
	return o.queue.Stats()
}

// Close cancels every running job. Scans already admitted to the queue
// still finish. It is idempotent.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		return
	}
	o.closed = true
	cancels := make([]context.CancelFunc, 0, len(o.jobCancels))
	for _, c := range o.jobCancels {
		cancels = append(cancels, c)
	}
	o.jobsMu.Unlock()

	for _, c := range cancels {
		c()
	}
}
