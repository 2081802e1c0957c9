// Package browser manages the headless browser the scan executor drives.
package browser

import (
	"context"
	"errors"
)

// ErrClosed is returned by Acquire after the manager has been closed.
var ErrClosed = errors.New("browser manager closed")

// Launcher starts browser instances.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser process that pages can be opened in.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)

	// ControlEndpoint is the remote-debugging address an external audit
	// engine attaches to, e.g. "http://127.0.0.1:9222".
	ControlEndpoint() string

	// Connected reports whether the browser still answers.
	Connected() bool

	Close() error
}

// Page is a single tab.
type Page interface {
	SetUserAgent(ctx context.Context, ua string) error

	// Goto navigates and returns the HTTP status of the main document.
	Goto(ctx context.Context, url string) (int, error)

	// URL returns the current location after redirects.
	URL(ctx context.Context) (string, error)

	// HTML returns the serialized rendered document.
	HTML(ctx context.Context) (string, error)

	Close() error
}
