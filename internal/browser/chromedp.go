package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/webscan/internal/logging"
)

// ChromedpLauncher starts headless Chrome through chromedp with a fixed
// remote-debugging port so an external audit engine can attach to it.
type ChromedpLauncher struct {
	cfg    Config
	logger logging.Logger
}

func NewChromedpLauncher(cfg Config, logger logging.Logger) *ChromedpLauncher {
	return &ChromedpLauncher{cfg: cfg, logger: logger.With(logging.Field{Key: "component", Value: "chromedp"})}
}

func (l *ChromedpLauncher) Launch(ctx context.Context) (Browser, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("pick debugging port: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("remote-debugging-port", strconv.Itoa(port)),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}
	if !l.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	// The browser outlives the launching request; ctx only bounds startup.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			l.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	stop := context.AfterFunc(ctx, allocCancel)
	err = chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, errors.Join(err, ctx.Err())
		}
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromedpBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		endpoint:    "http://127.0.0.1:" + strconv.Itoa(port),
		cfg:         l.cfg,
	}, nil
}

type chromedpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	endpoint    string
	cfg         Config
	closeOnce   sync.Once
	closeErr    error
}

func (b *chromedpBrowser) ControlEndpoint() string { return b.endpoint }

func (b *chromedpBrowser) Connected() bool {
	if b.ctx.Err() != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	_, err := chromedp.Targets(ctx)
	return err == nil
}

func (b *chromedpBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, network.Enable())
	stop()
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &chromedpPage{ctx: tabCtx, cancel: tabCancel, cfg: b.cfg}, nil
}

func (b *chromedpBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
		if errors.Is(b.closeErr, context.Canceled) {
			b.closeErr = nil
		}
	})
	return b.closeErr
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
}

// scoped derives an action context from the tab that also honours the
// deadline and cancellation of the caller's ctx.
func (p *chromedpPage) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if dl, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, dl)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromedpPage) SetUserAgent(ctx context.Context, ua string) error {
	runCtx, cancel := p.scoped(ctx)
	defer cancel()
	return chromedp.Run(runCtx, emulation.SetUserAgentOverride(ua))
}

func (p *chromedpPage) Goto(ctx context.Context, url string) (int, error) {
	runCtx, cancel := p.scoped(ctx)
	defer cancel()

	idle, arm := waitNetworkIdle(runCtx, p.cfg.IdleAfter)
	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return 0, err
	}
	arm()
	status := 0
	if resp != nil {
		status = int(resp.Status)
	}

	idleTimeout := time.NewTimer(p.cfg.IdleTimeout)
	defer idleTimeout.Stop()
	select {
	case <-idle:
	case <-idleTimeout.C:
	case <-runCtx.Done():
		return status, runCtx.Err()
	}
	return status, nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	runCtx, cancel := p.scoped(ctx)
	defer cancel()
	var loc string
	err := chromedp.Run(runCtx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := p.scoped(ctx)
	defer cancel()
	var html string
	err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromedpPage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// waitNetworkIdle returns a channel closed once no request has been in
// flight for idleAfter, and arm, which starts the quiet period when nothing
// is in flight at the time it is called. Requests are tracked by id so
// redirects do not skew the count.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) (<-chan struct{}, func()) {
	idle := make(chan struct{})
	var (
		mu       sync.Mutex
		inflight = map[network.RequestID]struct{}{}
		timer    *time.Timer
		once     sync.Once
	)

	// startTimer must be called with mu held.
	startTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			mu.Lock()
			quiet := len(inflight) == 0
			mu.Unlock()
			if quiet {
				once.Do(func() { close(idle) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			inflight[e.RequestID] = struct{}{}
			if timer != nil {
				timer.Stop()
			}
		case *network.EventLoadingFinished:
			delete(inflight, e.RequestID)
			if len(inflight) == 0 {
				startTimer()
			}
		case *network.EventLoadingFailed:
			delete(inflight, e.RequestID)
			if len(inflight) == 0 {
				startTimer()
			}
		}
	})

	arm := func() {
		mu.Lock()
		defer mu.Unlock()
		if len(inflight) == 0 {
			startTimer()
		}
	}
	return idle, arm
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
