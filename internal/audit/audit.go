// Package audit runs the external audit engine against a live browser.
package audit

import (
	"context"

	"github.com/raysh454/webscan/internal/model"
)

// Emulation selects the device profile the engine audits with.
type Emulation string

const (
	EmulationDesktop Emulation = "desktop"
	EmulationMobile  Emulation = "mobile"
)

// Options parameterize a single audit run.
type Options struct {
	// ControlEndpoint is the remote-debugging address of the browser the
	// engine attaches to.
	ControlEndpoint string
	Categories      []string
	// AuditIDs restricts the run to these audits when non-empty.
	AuditIDs  []string
	Emulation Emulation
}

// Engine produces a raw audit report for a page. Failures are
// *scanerr.AuditEngineError.
type Engine interface {
	Run(ctx context.Context, pageURL string, opts Options) (*model.RawAuditReport, error)
}
