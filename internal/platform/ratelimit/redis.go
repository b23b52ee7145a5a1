package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis implementa ventana fija con INCR + EXPIRE; el contador vive en Redis
// y lo comparten todas las réplicas.
type Redis struct {
	client *redis.Client
	rule   Rule
	prefix string
}

func NewRedis(client *redis.Client, prefix string, rule Rule) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{client: client, rule: rule, prefix: prefix}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if !r.rule.enabled() {
		return true, nil
	}

	k := fmt.Sprintf("%s:%s", r.prefix, key)

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.rule.Window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	}

	return count <= int64(r.rule.Limit), nil
}

// NewRedisClient abre el cliente y verifica conectividad con PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}
