package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inflightKeyPrefix = "signup:inflight:"

// releaseScript deletes the marker only when it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGate shares in-flight markers between replicas. The lease must
// outlast the slowest effect; it only reclaims markers left behind by a
// process that died mid-transition.
type RedisGate struct {
	client *redis.Client
	lease  time.Duration
}

func NewRedisGate(client *redis.Client, lease time.Duration) *RedisGate {
	if client == nil {
		panic("session: redis client required")
	}
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	return &RedisGate{client: client, lease: lease}
}

func (g *RedisGate) TryAcquire(ctx context.Context, key, holder string) (bool, error) {
	ok, err := g.client.SetNX(ctx, inflightKeyPrefix+key, holder, g.lease).Result()
	if err != nil {
		return false, fmt.Errorf("session: acquire in-flight marker: %w", err)
	}
	return ok, nil
}

func (g *RedisGate) Release(ctx context.Context, key, holder string) error {
	if err := releaseScript.Run(ctx, g.client, []string{inflightKeyPrefix + key}, holder).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: release in-flight marker: %w", err)
	}
	return nil
}

func (g *RedisGate) Holder(ctx context.Context, key string) (string, error) {
	holder, err := g.client.Get(ctx, inflightKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("session: read in-flight marker: %w", err)
	}
	return holder, nil
}
