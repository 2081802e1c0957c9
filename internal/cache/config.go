package cache

import "time"

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	// Backend names a registered store backend.
	Backend string
	// DSN is backend specific: a file path for sqlite, a connection string
	// for postgres, a redis:// URL for redis.
	DSN string

	// Expiration is how long a completed result stays fresh.
	Expiration time.Duration
	// ProbeInterval is the period of the background health probe.
	ProbeInterval time.Duration
	// KeyPrefix namespaces redis keys.
	KeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		Backend:       BackendSQLite,
		DSN:           "webscan.db",
		Expiration:    48 * time.Hour,
		ProbeInterval: 30 * time.Second,
		KeyPrefix:     "webscan:scan:",
	}
}
