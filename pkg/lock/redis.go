package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deletes the key only while it still holds the caller's token
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// RedisLocker is a Locker shared by every process using the same Redis.
type RedisLocker struct {
	client       redisClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// RedisConfig holds Redis locker configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Prefix       string
	TTL          time.Duration // must exceed the longest execution
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewRedisLocker connects a Redis-backed locker.
func NewRedisLocker(cfg *RedisConfig) (*RedisLocker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return newRedisLocker(client, cfg)
}

func newRedisLocker(client redisClient, cfg *RedisConfig) (*RedisLocker, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "hedge-lock"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	l := &RedisLocker{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: pollInterval,
		logger:       cfg.Logger,
	}

	return l, nil
}

func (l *RedisLocker) key(k string) string {
	return fmt.Sprintf("%s:%s", l.prefix, k)
}

// Acquire polls SET NX until the key is free or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (release func(), err error) {
	redisKey := l.key(key)
	token := uuid.New().String()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}

		if ok {
			LocksAcquiredTotal.WithLabelValues("redis").Inc()
			l.logger.Debug("lock-acquired", zap.String("key", redisKey))
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			LockWaitTimeoutsTotal.WithLabelValues("redis").Inc()
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err()
			if err != nil {
				l.logger.Warn("lock-release-failed", zap.String("key", redisKey), zap.Error(err))
				return
			}
			l.logger.Debug("lock-released", zap.String("key", redisKey))
		})
	}
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
