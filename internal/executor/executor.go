// Package executor runs one scan: a browser page, navigation, and an audit,
// retried a bounded number of times.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raysh454/webscan/internal/audit"
	"github.com/raysh454/webscan/internal/browser"
	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/retry"
	"github.com/raysh454/webscan/internal/scanerr"
)

// Phase is the stage an attempt is in.
type Phase string

const (
	PhaseLaunching  Phase = "launching"
	PhasePageOpen   Phase = "page_open"
	PhaseNavigating Phase = "navigating"
	PhaseAuditing   Phase = "auditing"
	PhaseDone       Phase = "done"
	PhaseCleanup    Phase = "cleanup"
)

// Executor turns a URL into a raw audit report.
type Executor struct {
	cfg      Config
	browsers *browser.Manager
	engine   audit.Engine
	logger   logging.Logger

	mu                  sync.Mutex
	consecutiveFailures int
}

func New(cfg Config, browsers *browser.Manager, engine audit.Engine, logger logging.Logger) *Executor {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Executor{
		cfg:      cfg,
		browsers: browsers,
		engine:   engine,
		logger:   logger.With(logging.Field{Key: "component", Value: "executor"}),
	}
}

// ExecuteScan runs up to MaxAttempts attempts against url. When every
// attempt fails the error is a *scanerr.ScanExhaustedError wrapping the last
// attempt's failure.
func (e *Executor) ExecuteScan(ctx context.Context, url string) (*model.RawAuditReport, error) {
	log := e.logger.With(logging.Field{Key: "url", Value: url})
	policy := retry.Policy{
		MaxAttempts: e.cfg.MaxAttempts,
		Delay:       e.cfg.RetryDelay,
		Retryable:   scanerr.IsRetryable,
		OnRetry: func(attempt int, err error) {
			log.Warn("scan attempt failed, retrying",
				logging.Field{Key: "attempt", Value: attempt},
				logging.Field{Key: "error", Value: err},
			)
		},
	}

	report, attempts, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (*model.RawAuditReport, error) {
		return e.attempt(ctx, url, log.With(logging.Field{Key: "attempt", Value: attempt}))
	})
	if err != nil {
		log.Error("scan failed", logging.Field{Key: "attempts", Value: attempts}, logging.Field{Key: "error", Value: err})
		return nil, &scanerr.ScanExhaustedError{URL: url, Attempts: attempts, Err: err}
	}
	return report, nil
}

func (e *Executor) attempt(ctx context.Context, url string, log logging.Logger) (report *model.RawAuditReport, err error) {
	var phase Phase
	enter := func(p Phase) {
		phase = p
		log.Debug("scan phase", logging.Field{Key: "phase", Value: string(p)})
	}
	enter(PhaseLaunching)

	lease, err := e.browsers.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	defer func() { e.recordOutcome(lease, err, phase, log) }()

	enter(PhasePageOpen)
	page, err := lease.Browser().NewPage(ctx)
	if err != nil {
		return nil, &scanerr.LaunchError{Err: err}
	}
	defer func() {
		log.Debug("scan phase", logging.Field{Key: "phase", Value: string(PhaseCleanup)})
		if cerr := page.Close(); cerr != nil {
			log.Warn("failed to close page", logging.Field{Key: "error", Value: &scanerr.ResourceCleanupError{Resource: "page", Err: cerr}})
		}
	}()
	if err := page.SetUserAgent(ctx, e.cfg.UserAgent); err != nil {
		return nil, &scanerr.LaunchError{Err: err}
	}

	enter(PhaseNavigating)
	finalURL, err := e.navigate(ctx, page, url)
	if err != nil {
		return nil, err
	}
	if err := sleep(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}

	var snapshot string
	if e.cfg.CaptureDOM {
		if snapshot, err = page.HTML(ctx); err != nil {
			log.Warn("failed to capture rendered HTML", logging.Field{Key: "error", Value: err})
			snapshot = ""
		}
	}

	enter(PhaseAuditing)
	auditCtx, cancel := context.WithTimeout(ctx, e.cfg.AuditTimeout)
	defer cancel()
	report, err = e.engine.Run(auditCtx, finalURL, audit.Options{
		ControlEndpoint: lease.Browser().ControlEndpoint(),
		Categories:      e.cfg.Categories,
		AuditIDs:        e.cfg.AuditIDs,
		Emulation:       e.cfg.Emulation,
	})
	if err != nil {
		var ae *scanerr.AuditEngineError
		if !errors.As(err, &ae) && !errors.Is(err, context.Canceled) {
			err = &scanerr.AuditEngineError{URL: finalURL, Err: err}
		}
		return nil, err
	}
	if report == nil {
		return nil, &scanerr.AuditEngineError{URL: finalURL, Err: errors.New("empty report")}
	}
	if report.FinalURL == "" {
		report.FinalURL = report.ResolvedURL(finalURL)
	}
	report.DOMSnapshot = snapshot

	enter(PhaseDone)
	return report, nil
}

// navigate loads url within NavigationTimeout and returns the post-redirect
// location. 2xx and 304 responses count as success.
func (e *Executor) navigate(ctx context.Context, page browser.Page, url string) (string, error) {
	navCtx := ctx
	if e.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, e.cfg.NavigationTimeout)
		defer cancel()
	}

	status, err := page.Goto(navCtx, url)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", err
		}
		return "", &scanerr.NavigationError{URL: url, StatusCode: status, Err: err}
	}
	if !(status >= 200 && status < 300) && status != 304 {
		return "", &scanerr.NavigationError{URL: url, StatusCode: status}
	}

	finalURL, err := page.URL(ctx)
	if err != nil || finalURL == "" {
		return url, nil
	}
	return finalURL, nil
}

func (e *Executor) recordOutcome(lease *browser.Lease, err error, phase Phase, log logging.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		e.consecutiveFailures = 0
		return
	}
	e.consecutiveFailures++
	log.Debug("attempt failed", logging.Field{Key: "phase", Value: string(phase)}, logging.Field{Key: "consecutive_failures", Value: e.consecutiveFailures})
	if e.cfg.DiscardAfterFailures > 0 && e.consecutiveFailures >= e.cfg.DiscardAfterFailures {
		e.browsers.Discard(lease)
		e.consecutiveFailures = 0
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
