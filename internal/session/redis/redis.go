// redis implements session.Store on top of Redis: SET with EX, GET and DEL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JosephRemingston/insightAI/internal/session"
)

// Store: Redis-backed session store.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// New creates a client from a URL (e.g. redis://:pass@host:6379/0) and pings
// it to fail fast. prefix is prepended to every key; it may be empty.
func New(ctx context.Context, redisURL, prefix string) (*Store, error) {
	const op = "session.redis.New"

	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := goredis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb, prefix: prefix}, nil
}

func (s *Store) key(k string) string { return s.prefix + k }

// Put stores value with expiry.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "session.redis.Put"

	if ttl <= 0 {
		return fmt.Errorf("%s: %w", op, session.ErrInvalidTTL)
	}

	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Get returns the value or session.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "session.redis.Get"

	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("%s: %w", op, session.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	const op = "session.redis.Delete"

	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.rdb.Close() }

var _ session.Store = (*Store)(nil)
