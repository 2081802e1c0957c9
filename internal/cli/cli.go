package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

// CLIArgs are the command-line overrides for one run of the service. Zero
// values mean "use the configured value".
type CLIArgs struct {
	// Target, when set, scans this single URL, prints the result and exits
	// instead of serving HTTP.
	Target string

	Addr         string
	Concurrency  int
	CacheBackend string
	CacheDSN     string
	Expiration   time.Duration

	ChromePath    string
	LighthouseBin string

	// NoDedup disables sharing in-flight scans between requests.
	NoDedup bool

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by passing
// arbitrary slices. The function is deterministic and does not read os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	fs := flag.NewFlagSet("webscan", flag.ContinueOnError)
	var (
		target        = fs.String("url", "", "Scan a single URL, print the JSON result and exit")
		addr          = fs.String("addr", "", "HTTP listen address (default :3030)")
		concurrency   = fs.Int("concurrency", 0, "Maximum concurrent scans (0=use default)")
		cacheBackend  = fs.String("cache", "", "Cache backend: sqlite|postgres|redis")
		cacheDSN      = fs.String("cache-dsn", "", "Cache location: sqlite path, postgres DSN or redis URL")
		expiration    = fs.Duration("expiration", 0, "How long a cached result stays fresh (0=use default)")
		chromePath    = fs.String("chrome", "", "Path to the Chrome binary")
		lighthouseBin = fs.String("lighthouse", "", "Path to the lighthouse CLI")
		noDedup       = fs.Bool("no-dedup", false, "Do not share in-flight scans of the same URL")
	)

	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if *concurrency < 0 {
		return nil, fmt.Errorf("-concurrency must not be negative")
	}
	if *expiration < 0 {
		return nil, fmt.Errorf("-expiration must not be negative")
	}

	return &CLIArgs{
		Target:        strings.TrimSpace(*target),
		Addr:          *addr,
		Concurrency:   *concurrency,
		CacheBackend:  *cacheBackend,
		CacheDSN:      *cacheDSN,
		Expiration:    *expiration,
		ChromePath:    *chromePath,
		LighthouseBin: *lighthouseBin,
		NoDedup:       *noDedup,
		RawArgs:       args,
	}, nil
}
