package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/raysh454/webscan/internal/model"
)

// ─── Scanner ───────────────────────────────────────────────────────────

// DummyScanner stands in for the executor. Each ExecuteScan call returns
// Report(url) (SampleReport when nil) or Err. When Gate is non-nil every
// call blocks until Gate is closed or ctx is done.
type DummyScanner struct {
	Report func(url string) *model.RawAuditReport
	Err    error
	Gate   chan struct{}

	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	started chan struct{}
	urls    []string
}

func (d *DummyScanner) ExecuteScan(ctx context.Context, url string) (*model.RawAuditReport, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.urls = append(d.urls, url)
	d.mu.Unlock()
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	d.signalStarted()

	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Report != nil {
		return d.Report(url), nil
	}
	return SampleReport(url), nil
}

// Calls returns how many scans were executed.
func (d *DummyScanner) Calls() int { return int(d.calls.Load()) }

// URLs returns the URLs passed to ExecuteScan, in call order.
func (d *DummyScanner) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// Peak returns the largest number of scans that ran at once.
func (d *DummyScanner) Peak() int { return int(d.peak.Load()) }

// Started returns a channel that receives once per started scan.
func (d *DummyScanner) Started() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started == nil {
		d.started = make(chan struct{}, 64)
	}
	return d.started
}

func (d *DummyScanner) signalStarted() {
	d.mu.Lock()
	ch := d.started
	d.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
