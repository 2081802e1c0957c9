package browser

import "time"

// Config tunes the chromedp launcher.
type Config struct {
	// ExecPath overrides the Chrome binary chromedp looks up.
	ExecPath string
	Headless bool
	// NoSandbox disables the Chrome sandbox, required when running as root
	// inside containers.
	NoSandbox bool

	// IdleAfter is how long the network must be quiet before a navigation
	// counts as settled.
	IdleAfter time.Duration
	// IdleTimeout bounds the wait for network idle after the load event.
	IdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Headless:    true,
		NoSandbox:   true,
		IdleAfter:   500 * time.Millisecond,
		IdleTimeout: 10 * time.Second,
	}
}
