package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/webscan/internal/logging"
)

// BackendConstructor builds a Connector for a named backend.
type BackendConstructor func(cfg Config, logger logging.Logger) (Connector, error)

var (
	mu       sync.RWMutex
	registry = map[string]BackendConstructor{}
)

// RegisterBackend registers a named backend constructor. Name is lower-cased
// internally. Calling RegisterBackend with the same name overwrites the previous
// constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// RegisterDefaultBackends registers the sqlite, postgres and redis stores.
func RegisterDefaultBackends() {
	RegisterBackend(BackendSQLite, func(cfg Config, logger logging.Logger) (Connector, error) {
		return NewSQLiteConnector(cfg.DSN, logger), nil
	})
	RegisterBackend(BackendPostgres, func(cfg Config, logger logging.Logger) (Connector, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return NewPostgresConnector(cfg.DSN, logger), nil
	})
	RegisterBackend(BackendRedis, func(cfg Config, logger logging.Logger) (Connector, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("redis backend requires a URL")
		}
		return NewRedisConnector(cfg.DSN, cfg.KeyPrefix, logger)
	})
}

// NewConnector returns the connector of the configured backend. An empty
// backend selects sqlite.
func NewConnector(cfg Config, logger logging.Logger) (Connector, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendSQLite
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache backend %q not registered: available backends=%v", backend, ListBackends())
	}

	connect, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct cache backend %q: %w", backend, err)
	}
	return connect, nil
}

// ListBackends returns the registered backend names, sorted.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
