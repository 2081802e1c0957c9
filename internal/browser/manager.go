package browser

import (
	"context"
	"sync"

	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/scanerr"
)

// Manager owns the shared browser. Callers take a Lease for the duration
// of one scan attempt; a browser that is discarded or found disconnected is
// closed once its last lease is released, and the next Acquire launches a
// fresh one.
//
// mu only guards bookkeeping. Launching, the connectivity check and closing
// a browser all happen outside it, so a slow Chrome startup never blocks
// another attempt from releasing or discarding its lease.
type Manager struct {
	launcher Launcher
	logger   logging.Logger

	mu      sync.Mutex
	current *instance
	// launching is non-nil while a launch is in progress and is closed when
	// it ends. Concurrent Acquire calls wait on it instead of launching too.
	launching chan struct{}
	closed    bool
}

type instance struct {
	browser Browser
	leases  int
	retired bool
}

// Lease is a reference to the shared browser held by one attempt.
type Lease struct {
	m    *Manager
	inst *instance
	once sync.Once
}

func NewManager(launcher Launcher, logger logging.Logger) *Manager {
	return &Manager{
		launcher: launcher,
		logger:   logger.With(logging.Field{Key: "component", Value: "browser"}),
	}
}

// Acquire returns a lease on a connected browser, launching one when none is
// running or the current one has gone away. Launch failures are
// *scanerr.LaunchError.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}

		if inst := m.current; inst != nil {
			// The lease keeps inst open while it is checked unlocked.
			inst.leases++
			m.mu.Unlock()
			if inst.browser.Connected() {
				return &Lease{m: m, inst: inst}, nil
			}
			m.logger.Warn("browser disconnected, relaunching")
			m.retire(inst)
			m.release(inst)
			continue
		}

		if wait := m.launching; wait != nil {
			m.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, &scanerr.LaunchError{Err: ctx.Err()}
			}
		}

		done := make(chan struct{})
		m.launching = done
		m.mu.Unlock()

		return m.launch(ctx, done)
	}
}

// launch starts a browser and installs it as current. done is closed when
// the launch ends, successful or not.
func (m *Manager) launch(ctx context.Context, done chan struct{}) (*Lease, error) {
	b, err := m.launcher.Launch(ctx)

	m.mu.Lock()
	m.launching = nil
	close(done)
	if err != nil {
		m.mu.Unlock()
		return nil, &scanerr.LaunchError{Err: err}
	}
	if m.closed {
		m.mu.Unlock()
		_ = m.closeInstance(&instance{browser: b})
		return nil, ErrClosed
	}
	inst := &instance{browser: b, leases: 1}
	m.current = inst
	m.mu.Unlock()

	m.logger.Info("browser launched", logging.Field{Key: "endpoint", Value: b.ControlEndpoint()})
	return &Lease{m: m, inst: inst}, nil
}

// Discard retires the browser behind lease so later attempts get a new one.
// It is a no-op when that browser was already replaced.
func (m *Manager) Discard(lease *Lease) {
	if lease == nil {
		return
	}
	m.mu.Lock()
	current := m.current == lease.inst
	m.mu.Unlock()
	if current {
		m.logger.Warn("discarding shared browser")
		m.retire(lease.inst)
	}
}

// Close retires the current browser. It is closed immediately when no lease
// holds it, otherwise on the last release. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	inst := m.current
	m.current = nil
	idle := inst != nil && m.retireLocked(inst)
	m.mu.Unlock()

	if idle {
		return m.closeInstance(inst)
	}
	return nil
}

// retire detaches inst from the manager and closes it if unused.
func (m *Manager) retire(inst *instance) {
	m.mu.Lock()
	if m.current == inst {
		m.current = nil
	}
	idle := m.retireLocked(inst)
	m.mu.Unlock()
	if idle {
		_ = m.closeInstance(inst)
	}
}

// retireLocked marks inst retired and reports whether the caller must close
// it now. It reports false when inst was already retired.
func (m *Manager) retireLocked(inst *instance) bool {
	if inst.retired {
		return false
	}
	inst.retired = true
	return inst.leases == 0
}

func (m *Manager) release(inst *instance) {
	m.mu.Lock()
	inst.leases--
	idle := inst.retired && inst.leases == 0
	m.mu.Unlock()
	if idle {
		_ = m.closeInstance(inst)
	}
}

func (m *Manager) closeInstance(inst *instance) error {
	if err := inst.browser.Close(); err != nil {
		cerr := &scanerr.ResourceCleanupError{Resource: "browser", Err: err}
		m.logger.Warn("failed to close browser", logging.Field{Key: "error", Value: cerr})
		return cerr
	}
	m.logger.Debug("browser closed")
	return nil
}

// Browser returns the leased browser.
func (l *Lease) Browser() Browser { return l.inst.browser }

// Release returns the lease. Calling it more than once has no effect.
func (l *Lease) Release() {
	l.once.Do(func() { l.m.release(l.inst) })
}
