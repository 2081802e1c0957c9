package testutil

import (
	"context"
	"sync"

	"github.com/raysh454/webscan/internal/audit"
	"github.com/raysh454/webscan/internal/model"
)

// ─── Audit engine ──────────────────────────────────────────────────────

// DummyEngine implements audit.Engine. It returns Report (or a minimal
// report when nil), or the error produced by ErrFor for the given call.
type DummyEngine struct {
	Report *model.RawAuditReport
	// ErrFor returns the error for the n-th call (1-based), nil to succeed.
	ErrFor func(call int) error

	mu    sync.Mutex
	Calls []DummyEngineCall
}

type DummyEngineCall struct {
	URL  string
	Opts audit.Options
}

func (d *DummyEngine) Run(ctx context.Context, pageURL string, opts audit.Options) (*model.RawAuditReport, error) {
	d.mu.Lock()
	d.Calls = append(d.Calls, DummyEngineCall{URL: pageURL, Opts: opts})
	n := len(d.Calls)
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ErrFor != nil {
		if err := d.ErrFor(n); err != nil {
			return nil, err
		}
	}
	if d.Report != nil {
		cp := *d.Report
		return &cp, nil
	}
	return SampleReport(pageURL), nil
}

// CallCount returns how many audits were requested.
func (d *DummyEngine) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

// SampleReport is a small report with one failing accessibility audit and
// one slow performance metric.
func SampleReport(url string) *model.RawAuditReport {
	zero, slow, perf, acc := 0.0, 0.62, 0.83, 0.71
	fcp := 2400.0
	return &model.RawAuditReport{
		FinalURL: url,
		Categories: map[string]model.CategoryScore{
			model.CategoryPerformance:   {Score: &perf},
			model.CategoryAccessibility: {Score: &acc},
		},
		Audits: map[string]model.AuditResult{
			"image-alt": {
				ID: "image-alt", Score: &zero, ScoreDisplayMode: model.DisplayModeBinary,
				Details: model.AuditDetails{Items: []model.AuditItem{{Node: &model.NodeRef{Snippet: `<img src="hero.png">`}}}},
			},
			"first-contentful-paint": {
				ID: "first-contentful-paint", Score: &slow, ScoreDisplayMode: model.DisplayModeNumeric,
				NumericValue: &fcp, DisplayValue: "2.4 s",
			},
		},
	}
}
