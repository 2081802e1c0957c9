package executor

import (
	"time"

	"github.com/raysh454/webscan/internal/audit"
	"github.com/raysh454/webscan/internal/model"
)

// DefaultUserAgent is presented to audited sites to avoid bot blocking.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	AuditTimeout      time.Duration
	// SettleDelay is waited after navigation before auditing.
	SettleDelay time.Duration

	MaxAttempts int
	RetryDelay  time.Duration
	// DiscardAfterFailures retires the shared browser after this many
	// consecutive failed attempts. Zero disables it.
	DiscardAfterFailures int

	Categories []string
	AuditIDs   []string
	Emulation  audit.Emulation

	// CaptureDOM stores the rendered HTML on the report for DOM checks.
	CaptureDOM bool
}

func DefaultConfig() Config {
	return Config{
		UserAgent:            DefaultUserAgent,
		NavigationTimeout:    30 * time.Second,
		AuditTimeout:         120 * time.Second,
		SettleDelay:          2 * time.Second,
		MaxAttempts:          3,
		RetryDelay:           2 * time.Second,
		DiscardAfterFailures: 2,
		Categories:           []string{model.CategoryPerformance, model.CategoryAccessibility},
		Emulation:            audit.EmulationDesktop,
		CaptureDOM:           true,
	}
}
