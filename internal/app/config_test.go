package app

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/webscan/internal/cli"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if cfg.Concurrency != 2 || !cfg.DedupInFlight {
		t.Errorf("concurrency/dedup = %d/%v", cfg.Concurrency, cfg.DedupInFlight)
	}
	if cfg.Cache.Expiration != 48*time.Hour {
		t.Errorf("expiration = %s", cfg.Cache.Expiration)
	}
	if cfg.Normalizer.ErrorScoreThreshold != 0.5 || cfg.Normalizer.AlertScoreThreshold != 0.9 {
		t.Errorf("thresholds = %v/%v", cfg.Normalizer.ErrorScoreThreshold, cfg.Normalizer.AlertScoreThreshold)
	}
	if cfg.Normalizer.MaxErrorsPerCategory != 3 || cfg.Normalizer.MaxAlertsPerCategory != 5 {
		t.Errorf("caps = %d/%d", cfg.Normalizer.MaxErrorsPerCategory, cfg.Normalizer.MaxAlertsPerCategory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	err := applyEnv(cfg, envMap(map[string]string{
		"WEBSCAN_ADDR":                 ":8080",
		"WEBSCAN_CONCURRENCY":          "6",
		"WEBSCAN_DEDUP":                "false",
		"WEBSCAN_CACHE_BACKEND":        "postgres",
		"WEBSCAN_CACHE_DSN":            "postgres://u:p@db/webscan",
		"WEBSCAN_CACHE_EXPIRATION":     "12h",
		"WEBSCAN_ERROR_THRESHOLD":      "0.4",
		"WEBSCAN_MAX_ALERTS":           "7",
		"WEBSCAN_ACCESSIBILITY_AUDITS": "image-alt, label ,,link-name",
		"WEBSCAN_CORS_ORIGINS":         "http://localhost:3000,https://app.example.com",
		"WEBSCAN_RETRY_DELAY":          "500ms",
		"WEBSCAN_CHROME_PATH":          "   ",
		"WEBSCAN_STRIP_TRACKING":       "true",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	if cfg.ListenAddr != ":8080" || cfg.Concurrency != 6 || cfg.DedupInFlight {
		t.Errorf("top-level = %q %d %v", cfg.ListenAddr, cfg.Concurrency, cfg.DedupInFlight)
	}
	if cfg.Cache.Backend != "postgres" || cfg.Cache.DSN != "postgres://u:p@db/webscan" || cfg.Cache.Expiration != 12*time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Normalizer.ErrorScoreThreshold != 0.4 || cfg.Normalizer.MaxAlertsPerCategory != 7 {
		t.Errorf("normalizer = %v/%d", cfg.Normalizer.ErrorScoreThreshold, cfg.Normalizer.MaxAlertsPerCategory)
	}
	if want := []string{"image-alt", "label", "link-name"}; !reflect.DeepEqual(cfg.Normalizer.AccessibilityAuditIDs, want) {
		t.Errorf("accessibility audits = %v", cfg.Normalizer.AccessibilityAuditIDs)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.Executor.RetryDelay != 500*time.Millisecond {
		t.Errorf("retry delay = %s", cfg.Executor.RetryDelay)
	}
	if cfg.Browser.ExecPath != "" {
		t.Errorf("blank variable should be ignored, got %q", cfg.Browser.ExecPath)
	}
	if !cfg.CacheKey.DropTrackingParams {
		t.Error("WEBSCAN_STRIP_TRACKING should enable tracking param stripping")
	}
	if DefaultConfig().CacheKey.DropTrackingParams {
		t.Error("tracking params should be part of the cache key by default")
	}
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	err := applyEnv(cfg, envMap(map[string]string{"WEBSCAN_CONCURRENCY": "lots"}))
	if err == nil || !strings.Contains(err.Error(), "WEBSCAN_CONCURRENCY") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"zero expiration", func(c *Config) { c.Cache.Expiration = 0 }},
		{"no attempts", func(c *Config) { c.Executor.MaxAttempts = 0 }},
		{"inverted thresholds", func(c *Config) { c.Normalizer.ErrorScoreThreshold = 0.95 }},
		{"negative cap", func(c *Config) { c.Normalizer.MaxErrorsPerCategory = -1 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestApplyArgs(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.ApplyArgs(&cli.CLIArgs{
		Addr:         ":9999",
		Concurrency:  3,
		CacheBackend: "redis",
		CacheDSN:     "redis://localhost:6379/1",
		Expiration:   time.Hour,
		NoDedup:      true,
	})
	if cfg.ListenAddr != ":9999" || cfg.Concurrency != 3 || cfg.DedupInFlight {
		t.Errorf("top-level = %q %d %v", cfg.ListenAddr, cfg.Concurrency, cfg.DedupInFlight)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.DSN != "redis://localhost:6379/1" || cfg.Cache.Expiration != time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}

	untouched := DefaultConfig()
	untouched.ApplyArgs(&cli.CLIArgs{})
	if !reflect.DeepEqual(untouched, DefaultConfig()) {
		t.Error("zero args should not change the config")
	}
}

func TestAuditIDs_UnionInOrder(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Normalizer.PerformanceAuditIDs = []string{"speed-index", "dom-size"}
	cfg.Normalizer.AccessibilityAuditIDs = []string{"image-alt", "dom-size", "label"}
	if got, want := cfg.auditIDs(), []string{"speed-index", "dom-size", "image-alt", "label"}; !reflect.DeepEqual(got, want) {
		t.Errorf("auditIDs = %v, want %v", got, want)
	}
}
