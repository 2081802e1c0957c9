package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/raysh454/webscan/internal/browser"
)

// ─── Browser ───────────────────────────────────────────────────────────

// DummyLauncher implements browser.Launcher. Each Launch returns a new
// DummyBrowser configured by NewBrowser, or fails with LaunchErr. When Gate
// is non-nil every Launch blocks until Gate is closed or ctx is done.
type DummyLauncher struct {
	LaunchErr  error
	NewBrowser func(n int) *DummyBrowser
	Gate       chan struct{}
	// Started receives one value per Launch call before it blocks on Gate.
	Started chan struct{}

	mu       sync.Mutex
	Browsers []*DummyBrowser
}

func (l *DummyLauncher) Launch(ctx context.Context) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Started != nil {
		l.Started <- struct{}{}
	}
	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	var b *DummyBrowser
	if l.NewBrowser != nil {
		b = l.NewBrowser(len(l.Browsers))
	}
	if b == nil {
		b = &DummyBrowser{}
	}
	if b.Endpoint == "" {
		b.Endpoint = "http://127.0.0.1:9222"
	}
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

// Launches returns how many browsers were started.
func (l *DummyLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Browsers)
}

// DummyBrowser implements browser.Browser. Pages are produced by NewPageFunc
// or default to a DummyPage answering 200.
type DummyBrowser struct {
	Endpoint     string
	Disconnected atomic.Bool
	NewPageErr   error
	NewPageFunc  func() *DummyPage
	CloseErr     error

	mu     sync.Mutex
	Pages  []*DummyPage
	closed int
}

func (b *DummyBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	var p *DummyPage
	if b.NewPageFunc != nil {
		p = b.NewPageFunc()
	}
	if p == nil {
		p = &DummyPage{}
	}
	b.Pages = append(b.Pages, p)
	return p, nil
}

func (b *DummyBrowser) ControlEndpoint() string { return b.Endpoint }

func (b *DummyBrowser) Connected() bool { return !b.Disconnected.Load() }

func (b *DummyBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return b.CloseErr
}

// Closed returns how many times Close was called.
func (b *DummyBrowser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// DummyPage implements browser.Page. Zero Status means 200; an empty
// FinalURL echoes the navigated URL.
type DummyPage struct {
	Status   int
	GotoErr  error
	FinalURL string
	Content  string
	HTMLErr  error
	CloseErr error
	// BlockGoto makes Goto wait for ctx, simulating a navigation timeout.
	BlockGoto bool

	mu        sync.Mutex
	UserAgent string
	Visited   []string
	closed    int
}

func (p *DummyPage) SetUserAgent(_ context.Context, ua string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UserAgent = ua
	return nil
}

func (p *DummyPage) Goto(ctx context.Context, url string) (int, error) {
	p.mu.Lock()
	p.Visited = append(p.Visited, url)
	p.mu.Unlock()
	if p.BlockGoto {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if p.GotoErr != nil {
		return 0, p.GotoErr
	}
	if p.Status == 0 {
		return 200, nil
	}
	return p.Status, nil
}

func (p *DummyPage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FinalURL != "" {
		return p.FinalURL, nil
	}
	if len(p.Visited) > 0 {
		return p.Visited[len(p.Visited)-1], nil
	}
	return "about:blank", nil
}

func (p *DummyPage) HTML(context.Context) (string, error) {
	return p.Content, p.HTMLErr
}

func (p *DummyPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return p.CloseErr
}

// Closed returns how many times Close was called.
func (p *DummyPage) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
