// Package bootstrap builds the runtime collaborators of cmd/api from config.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/career-journal-signup/internal/config"
	"github.com/wolfman30/career-journal-signup/internal/session"
	"github.com/wolfman30/career-journal-signup/internal/signup"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when sessions
// are kept in memory. When verify is true, a ping is issued and failures
// return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || !cfg.UsesRedis() || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// SessionBackends is where wizard sessions and in-flight markers live.
type SessionBackends struct {
	Store   signup.SessionStore
	Gate    signup.InFlightGate
	Backend string

	memory *session.MemoryStore
}

// RunSweeper evicts expired in-memory sessions until ctx is done. It is a
// no-op for Redis, which expires keys itself.
func (b SessionBackends) RunSweeper(ctx context.Context, interval time.Duration) {
	if b.memory == nil {
		return
	}
	b.memory.RunSweeper(ctx, interval)
}

// BuildSessionBackends picks Redis when a client is available and falls back
// to process memory otherwise.
func BuildSessionBackends(cfg *appconfig.Config, client *redis.Client, logger *logging.Logger) SessionBackends {
	if logger == nil {
		logger = logging.Default()
	}
	if client != nil {
		lease := time.Duration(0)
		if cfg != nil {
			lease = cfg.InFlightLease
		}
		logger.Info("wizard sessions stored in redis")
		return SessionBackends{
			Store:   session.NewRedisStore(client),
			Gate:    session.NewRedisGate(client, lease),
			Backend: "redis",
		}
	}
	if cfg != nil && cfg.UsesRedis() {
		logger.Warn("redis requested but unavailable; wizard sessions stored in memory")
	}
	mem := session.NewMemoryStore()
	return SessionBackends{
		Store:   mem,
		Gate:    session.NewMemoryGate(),
		Backend: "memory",
		memory:  mem,
	}
}
