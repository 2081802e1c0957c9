package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/webscan/internal/audit"
	"github.com/raysh454/webscan/internal/browser"
	"github.com/raysh454/webscan/internal/cache"
	"github.com/raysh454/webscan/internal/executor"
	"github.com/raysh454/webscan/internal/normalizer"
	"github.com/raysh454/webscan/internal/utils"
)

// Config is the runtime configuration of the whole service. Each component
// owns its section; the top-level fields belong to the orchestrator and the
// HTTP surface.
type Config struct {
	// ListenAddr is the HTTP listen address of the API server.
	ListenAddr string
	// AllowedOrigins feeds the CORS middleware. "*" allows any origin.
	AllowedOrigins []string

	// Concurrency bounds the number of scans running at once.
	Concurrency int
	// DedupInFlight shares one execution between concurrent requests for
	// the same uncached URL.
	DedupInFlight bool
	// JobRetention is how long finished async jobs stay queryable.
	JobRetention time.Duration

	Browser    browser.Config
	Lighthouse audit.LighthouseConfig
	Executor   executor.Config
	Normalizer normalizer.Config
	Cache      cache.Config
	// CacheKey decides which request URLs share a cached result.
	CacheKey utils.KeyOptions
}

// DefaultConfig returns a Config populated with the production defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":3030",
		AllowedOrigins: []string{"*"},
		Concurrency:    2,
		DedupInFlight:  true,
		JobRetention:   10 * time.Minute,
		Browser:        browser.DefaultConfig(),
		Lighthouse:     audit.DefaultLighthouseConfig(),
		Executor:       executor.DefaultConfig(),
		Normalizer:     normalizer.DefaultConfig(),
		Cache:          cache.DefaultConfig(),
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	case c.Cache.Expiration <= 0:
		return fmt.Errorf("cache expiration must be positive, got %s", c.Cache.Expiration)
	case c.Executor.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Executor.MaxAttempts)
	case c.Normalizer.ErrorScoreThreshold > c.Normalizer.AlertScoreThreshold:
		return fmt.Errorf("error threshold %.2f exceeds alert threshold %.2f",
			c.Normalizer.ErrorScoreThreshold, c.Normalizer.AlertScoreThreshold)
	case c.Normalizer.MaxErrorsPerCategory < 0 || c.Normalizer.MaxAlertsPerCategory < 0:
		return fmt.Errorf("issue caps must not be negative")
	}
	return nil
}

// auditIDs is the union of both allow-lists, the only audits the engine
// needs to run.
func (c *Config) auditIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range [][]string{c.Normalizer.PerformanceAuditIDs, c.Normalizer.AccessibilityAuditIDs} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// LoadEnv applies WEBSCAN_* environment overrides to cfg.
func LoadEnv(cfg *Config) error {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.String("WEBSCAN_ADDR", &cfg.ListenAddr)
	e.List("WEBSCAN_CORS_ORIGINS", &cfg.AllowedOrigins)
	e.Int("WEBSCAN_CONCURRENCY", &cfg.Concurrency)
	e.Bool("WEBSCAN_DEDUP", &cfg.DedupInFlight)
	e.Duration("WEBSCAN_JOB_RETENTION", &cfg.JobRetention)

	e.String("WEBSCAN_CHROME_PATH", &cfg.Browser.ExecPath)
	e.Bool("WEBSCAN_CHROME_HEADLESS", &cfg.Browser.Headless)
	e.Bool("WEBSCAN_CHROME_NO_SANDBOX", &cfg.Browser.NoSandbox)
	e.String("WEBSCAN_LIGHTHOUSE_BIN", &cfg.Lighthouse.Binary)

	e.String("WEBSCAN_USER_AGENT", &cfg.Executor.UserAgent)
	e.Duration("WEBSCAN_NAVIGATION_TIMEOUT", &cfg.Executor.NavigationTimeout)
	e.Duration("WEBSCAN_AUDIT_TIMEOUT", &cfg.Executor.AuditTimeout)
	e.Duration("WEBSCAN_SETTLE_DELAY", &cfg.Executor.SettleDelay)
	e.Int("WEBSCAN_MAX_ATTEMPTS", &cfg.Executor.MaxAttempts)
	e.Duration("WEBSCAN_RETRY_DELAY", &cfg.Executor.RetryDelay)

	e.Float("WEBSCAN_ERROR_THRESHOLD", &cfg.Normalizer.ErrorScoreThreshold)
	e.Float("WEBSCAN_ALERT_THRESHOLD", &cfg.Normalizer.AlertScoreThreshold)
	e.Int("WEBSCAN_MAX_ERRORS", &cfg.Normalizer.MaxErrorsPerCategory)
	e.Int("WEBSCAN_MAX_ALERTS", &cfg.Normalizer.MaxAlertsPerCategory)
	e.List("WEBSCAN_PERFORMANCE_AUDITS", &cfg.Normalizer.PerformanceAuditIDs)
	e.List("WEBSCAN_ACCESSIBILITY_AUDITS", &cfg.Normalizer.AccessibilityAuditIDs)
	e.Bool("WEBSCAN_CUSTOM_CHECKS", &cfg.Normalizer.CustomChecks)

	e.String("WEBSCAN_CACHE_BACKEND", &cfg.Cache.Backend)
	e.String("WEBSCAN_CACHE_DSN", &cfg.Cache.DSN)
	e.Duration("WEBSCAN_CACHE_EXPIRATION", &cfg.Cache.Expiration)
	e.Duration("WEBSCAN_CACHE_PROBE_INTERVAL", &cfg.Cache.ProbeInterval)
	e.Bool("WEBSCAN_STRIP_TRACKING", &cfg.CacheKey.DropTrackingParams)

	return e.err
}

// envReader parses variables into typed fields, keeping the first error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, val string, err error) {
	e.err = fmt.Errorf("%s=%q: %w", key, val, err)
}

func (e *envReader) String(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) List(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) Int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) Float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

func (e *envReader) Bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) Duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}
