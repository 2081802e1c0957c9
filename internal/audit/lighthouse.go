package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/scanerr"
)

// LighthouseConfig locates and tunes the Lighthouse CLI.
type LighthouseConfig struct {
	// Binary is the lighthouse executable, looked up on PATH when relative.
	Binary           string
	MaxWaitForLoad   time.Duration
	ThrottlingMethod string
	ExtraArgs        []string
}

func DefaultLighthouseConfig() LighthouseConfig {
	return LighthouseConfig{
		Binary:           "lighthouse",
		MaxWaitForLoad:   60 * time.Second,
		ThrottlingMethod: "simulate",
	}
}

// Lighthouse runs the Lighthouse CLI attached to an already running browser
// and decodes its JSON report from stdout.
type Lighthouse struct {
	cfg    LighthouseConfig
	logger logging.Logger
}

func NewLighthouse(cfg LighthouseConfig, logger logging.Logger) *Lighthouse {
	if cfg.Binary == "" {
		cfg.Binary = "lighthouse"
	}
	return &Lighthouse{cfg: cfg, logger: logger.With(logging.Field{Key: "component", Value: "lighthouse"})}
}

const maxStderr = 4 << 10

func (l *Lighthouse) Run(ctx context.Context, pageURL string, opts Options) (*model.RawAuditReport, error) {
	fail := func(err error) (*model.RawAuditReport, error) {
		return nil, &scanerr.AuditEngineError{URL: pageURL, Err: err}
	}

	args, err := l.args(pageURL, opts)
	if err != nil {
		return fail(err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.cfg.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	l.logger.Debug("running lighthouse", logging.Field{Key: "url", Value: pageURL}, logging.Field{Key: "args", Value: args})
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(errors.Join(ctxErr, err))
		}
		return fail(fmt.Errorf("lighthouse exited: %w: %s", err, tail(stderr.String(), maxStderr)))
	}

	var report model.RawAuditReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return fail(fmt.Errorf("decode lighthouse report: %w", err))
	}
	if report.RuntimeError != nil && report.RuntimeError.Code != "" {
		return fail(fmt.Errorf("lighthouse runtime error %s: %s", report.RuntimeError.Code, report.RuntimeError.Message))
	}
	if len(report.Audits) == 0 {
		return fail(errors.New("lighthouse report has no audits"))
	}

	l.logger.Info("lighthouse finished",
		logging.Field{Key: "url", Value: pageURL},
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		logging.Field{Key: "audits", Value: len(report.Audits)},
	)
	return &report, nil
}

func (l *Lighthouse) args(pageURL string, opts Options) ([]string, error) {
	endpoint, err := url.Parse(opts.ControlEndpoint)
	if err != nil || endpoint.Port() == "" {
		return nil, fmt.Errorf("invalid control endpoint %q", opts.ControlEndpoint)
	}

	args := []string{
		pageURL,
		"--port=" + endpoint.Port(),
		"--output=json",
		"--output-path=stdout",
		"--quiet",
	}
	if host := endpoint.Hostname(); host != "" && host != "127.0.0.1" && host != "localhost" {
		args = append(args, "--hostname="+host)
	}
	if len(opts.Categories) > 0 {
		args = append(args, "--only-categories="+strings.Join(opts.Categories, ","))
	}
	if len(opts.AuditIDs) > 0 {
		args = append(args, "--only-audits="+strings.Join(opts.AuditIDs, ","))
	}
	if opts.Emulation == EmulationDesktop {
		args = append(args, "--preset=desktop")
	}
	if l.cfg.ThrottlingMethod != "" {
		args = append(args, "--throttling-method="+l.cfg.ThrottlingMethod)
	}
	if l.cfg.MaxWaitForLoad > 0 {
		args = append(args, "--max-wait-for-load="+strconv.FormatInt(l.cfg.MaxWaitForLoad.Milliseconds(), 10))
	}
	return append(args, l.cfg.ExtraArgs...), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
