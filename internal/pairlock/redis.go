package pairlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient narrows the redis operations the lock needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

// RedisAdapter wraps *redis.Client to satisfy RedisClient.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, expiration).Result()
}

func (r *RedisAdapter) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return r.client.Eval(ctx, script, keys, args...).Result()
}

// NewRedisClient connects and pings so a bad address fails at startup.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pairlock: connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

const (
	keyPrefix    = "social:lock:user:"
	retryInitial = 10 * time.Millisecond
	retryMax     = 200 * time.Millisecond
)

// Redis is a Locker shared by every server instance using the same Redis.
// Each key expires after ttl so a crashed holder cannot wedge a pair forever.
type Redis struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ Locker = (*Redis)(nil)

func NewRedis(client RedisClient, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (l *Redis) Lock(ctx context.Context, a, b string) (func(), error) {
	first, second := order(a, b)
	token := uuid.NewString()

	if err := l.acquire(ctx, first, token); err != nil {
		return nil, err
	}
	if second != "" {
		if err := l.acquire(ctx, second, token); err != nil {
			l.release(first, token)
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if second != "" {
				l.release(second, token)
			}
			l.release(first, token)
		})
	}, nil
}

func (l *Redis) acquire(ctx context.Context, id, token string) error {
	key := keyPrefix + id
	wait := retryInitial
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return fmt.Errorf("pairlock: acquiring %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("pairlock: waiting for %s: %w", key, ctx.Err())
		case <-timer.C:
		}
		wait = min(wait*2, retryMax)
	}
}

// release runs on its own context so a cancelled request still frees its keys.
func (l *Redis) release(id, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := keyPrefix + id
	if _, err := l.client.Eval(ctx, releaseScript, []string{key}, token); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("failed to release pair lock",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
