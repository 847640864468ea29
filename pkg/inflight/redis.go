package inflight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/idgen"
)

// DefaultTTL bounds how long a crashed holder blocks a key.
const DefaultTTL = 2 * time.Minute

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a Guard shared by every client of one Redis server.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	tokens *idgen.Generator
	logger *slog.Logger
}

// RedisConfig represents the configuration for a RedisGuard.
type RedisConfig struct {
	Addr   string
	Prefix string        // Default: "debt-tracker:inflight:"
	TTL    time.Duration // Default: 2 minutes
	Logger *slog.Logger
}

// NewRedisGuard creates a RedisGuard connected to cfg.Addr.
func NewRedisGuard(cfg RedisConfig) *RedisGuard {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "debt-tracker:inflight:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisGuard{
		client: rdb,
		prefix: prefix,
		ttl:    ttl,
		tokens: idgen.New("hold"),
		logger: logger,
	}
}

// Ping checks the connection.
func (g *RedisGuard) Ping(ctx context.Context) error {
	if err := g.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// Acquire holds key with SET NX and the configured TTL.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := g.tokens.Next()
	ok, err := g.client.SetNX(ctx, g.prefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The hold must be released even when the caller's context is done.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, g.client, []string{g.prefix + key}, token).Err(); err != nil {
				g.logger.Warn("failed to release in-flight hold", "key", key, "error", err)
			}
		})
	}, nil
}

// Close closes the Redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}
