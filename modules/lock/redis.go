// Package lock provides a Redis-backed core.Locker. Leases are plain
// SET NX PX keys holding a random token; release only deletes the key when the
// token still matches, so an expired lease taken over by another holder is
// never released by the original one.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Deepreo/reportsched/core"
)

type Config struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

var ErrNotAcquired = fmt.Errorf("lease is held by another process")

// releaseScript deletes the lease key only if the stored token matches.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type RedisLocker struct {
	client *redis.Client
	prefix string
}

var _ core.Locker = (*RedisLocker)(nil)

func New(ctx context.Context, cfg *Config) (*RedisLocker, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisLocker{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

// NewWithClient wraps an existing client, e.g. one shared with other
// components.
func NewWithClient(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.ReleaseFunc, error) {
	token := uuid.NewString()
	full := l.prefix + key

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{full}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lease %s: %w", key, err)
		}
		return nil
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func (l *RedisLocker) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
