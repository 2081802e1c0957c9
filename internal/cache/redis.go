package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/raysh454/webscan/internal/logging"
)

// RedisStore keeps each record as a hash under prefix+url.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisConnector parses a redis:// URL once and dials on each connect.
func NewRedisConnector(rawURL, prefix string, logger logging.Logger) (Connector, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return func(ctx context.Context) (Store, error) {
		store := NewRedisStore(redis.NewClient(opts), prefix)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Debug("opened redis cache", logging.Field{Key: "addr", Value: opts.Addr})
		return store, nil
	}, nil
}

func (s *RedisStore) key(url string) string { return s.prefix + url }

// EnsureSchema is a no-op; hashes need no setup.
func (s *RedisStore) EnsureSchema(context.Context) error { return nil }

func (s *RedisStore) Upsert(ctx context.Context, rec Record) error {
	err := s.client.HSet(ctx, s.key(rec.URL),
		"url", rec.URL,
		"status", rec.Status,
		"result", string(rec.Result),
		"timestamp", rec.Timestamp,
		"expires_at", rec.ExpiresAt,
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset failure: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, url string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(url)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("redis hgetall failure: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	ts, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: redis record %s: bad timestamp: %v", ErrUndecodable, url, err)
	}
	exp, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: redis record %s: bad expires_at: %v", ErrUndecodable, url, err)
	}
	return Record{
		URL:       fields["url"],
		Status:    fields["status"],
		Result:    []byte(fields["result"]),
		Timestamp: ts,
		ExpiresAt: exp,
	}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failure: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
