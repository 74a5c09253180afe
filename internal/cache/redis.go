package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "jarvis:tts:"
	defaultRedisTTL = 24 * time.Hour
)

// Compile-time interface assertion.
var _ Cache = (*Redis)(nil)

// RedisOption is a functional option for configuring a [Redis] cache.
type RedisOption func(*Redis)

// WithTTL sets the expiry applied to every stored entry. Defaults to 24 h.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = d }
}

// WithRedisLogger sets the structured logger. Defaults to [slog.Default].
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.log = l }
}

// Redis is a [Cache] backed by a Redis instance so multiple replicas share
// synthesized audio. Entries expire by TTL; the bound is Redis's own memory
// policy rather than a fixed entry count.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedis connects to the Redis instance at url (redis://host:port/db) and
// verifies the connection with a ping.
func NewRedis(ctx context.Context, url string, opts ...RedisOption) (*Redis, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(parsed)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}

	r := &Redis{
		client: client,
		ttl:    defaultRedisTTL,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Get implements [Cache]. Transport errors are logged and reported as a
// miss; the caller re-synthesizes.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set implements [Cache]. Failures are logged and otherwise ignored.
func (r *Redis) Set(ctx context.Context, key string, audio []byte) {
	if len(audio) == 0 {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, audio, r.ttl).Err(); err != nil {
		r.log.Warn("redis cache set failed", "key", key, "error", err)
	}
}

// Ping verifies connectivity to the Redis server, for readiness checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
