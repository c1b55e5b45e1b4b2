package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const leaseKey = "docjanitor:cleanup:lock"

// RedisLease is a cross-host cleanup run lock backed by a redis SET NX
// lease with a TTL, for deployments where several hosts share the roots.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
	holder string
}

// NewRedisLease connects to redis and returns a lease with the given TTL.
func NewRedisLease(redisURL string, ttl time.Duration) (*RedisLease, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	return &RedisLease{
		client: c,
		ttl:    ttl,
		holder: fmt.Sprintf("%s:%d", host, os.Getpid()),
	}, nil
}

// Acquire takes the lease if nobody holds it. The TTL bounds how long a
// crashed holder can block later runs.
func (r *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := r.client.SetNX(ctx, leaseKey, r.holder, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

// Release drops the lease if we still hold it.
func (r *RedisLease) Release(ctx context.Context) {
	val, err := r.client.Get(ctx, leaseKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("failed to read cleanup lease")
		}
		return
	}
	if val == r.holder {
		if err := r.client.Del(ctx, leaseKey).Err(); err != nil {
			log.Warn().Err(err).Msg("failed to release cleanup lease")
		}
	}
}

// Close releases the redis connection.
func (r *RedisLease) Close() error { return r.client.Close() }
