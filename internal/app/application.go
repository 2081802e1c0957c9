package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/webscan/internal/audit"
	"github.com/raysh454/webscan/internal/browser"
	"github.com/raysh454/webscan/internal/cache"
	"github.com/raysh454/webscan/internal/cli"
	"github.com/raysh454/webscan/internal/executor"
	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/queue"
)

// Application is the global runtime state container.
// It holds config, parsed CLI args and the long-lived components shared by
// the HTTP surface and the one-shot CLI mode.
type Application struct {
	Config *Config
	Args   *cli.CLIArgs
	Logger logging.Logger

	Orch     *Orchestrator
	Cache    *cache.ResultCache
	Queue    *queue.Queue
	Browsers *browser.Manager

	// internal context for background work (cache probe)
	ctx    context.Context
	cancel context.CancelFunc
}

// ApplyArgs copies the non-zero command-line overrides onto c.
func (c *Config) ApplyArgs(args *cli.CLIArgs) {
	if args == nil {
		return
	}
	if args.Addr != "" {
		c.ListenAddr = args.Addr
	}
	if args.Concurrency > 0 {
		c.Concurrency = args.Concurrency
	}
	if args.CacheBackend != "" {
		c.Cache.Backend = args.CacheBackend
	}
	if args.CacheDSN != "" {
		c.Cache.DSN = args.CacheDSN
	}
	if args.Expiration > 0 {
		c.Cache.Expiration = args.Expiration
	}
	if args.ChromePath != "" {
		c.Browser.ExecPath = args.ChromePath
	}
	if args.LighthouseBin != "" {
		c.Lighthouse.Binary = args.LighthouseBin
	}
	if args.NoDedup {
		c.DedupInFlight = false
	}
}

// NewApplication builds every component from cfg: the cache backend named
// by cfg.Cache, the scan queue, the chromedp browser manager, the
// Lighthouse engine, the executor and the orchestrator. Nothing is started
// until Start.
func NewApplication(cfg *Config, args *cli.CLIArgs, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyArgs(args)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cache.RegisterDefaultBackends()
	connect, err := cache.NewConnector(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	results := cache.New(connect, cfg.Cache, logger)

	q := queue.New(cfg.Concurrency, logger)
	browsers := browser.NewManager(browser.NewChromedpLauncher(cfg.Browser, logger), logger)
	engine := audit.NewLighthouse(cfg.Lighthouse, logger)

	execCfg := cfg.Executor
	if len(execCfg.AuditIDs) == 0 {
		execCfg.AuditIDs = cfg.auditIDs()
	}
	exec := executor.New(execCfg, browsers, engine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:   cfg,
		Args:     args,
		Logger:   logger,
		Orch:     NewOrchestrator(cfg, results, q, exec, logger),
		Cache:    results,
		Queue:    q,
		Browsers: browsers,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins background work: the cache health probe.
func (a *Application) Start() error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting",
		logging.Field{Key: "concurrency", Value: a.Config.Concurrency},
		logging.Field{Key: "cache_backend", Value: a.Config.Cache.Backend},
		logging.Field{Key: "cache_expiration", Value: a.Config.Cache.Expiration.String()})
	a.Cache.StartProbe(a.ctx)
	return nil
}

// Shutdown stops jobs, rejects queued scans, closes the browser and the
// cache store. Errors are joined; every component is closed regardless.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	a.Orch.Close()
	a.Queue.Close()
	a.cancel()

	var errs []error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Browsers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}()

	select {
	case <-done:
		return errors.Join(errs...)
	case <-shutdownCtx.Done():
		a.Logger.Warn("shutdown timed out", logging.Field{Key: "error", Value: shutdownCtx.Err()})
		return shutdownCtx.Err()
	}
}
