package prefstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a SessionStore keeping one hash per session, so replicas behind a
// load balancer share preferences. The hash expires ttl after its last write.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis returns a Redis store. prefix namespaces the session hashes.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) sessionKey(session string) string {
	return r.prefix + "session:" + session
}

// Get implements SessionStore.
func (r *Redis) Get(ctx context.Context, session, key string) (string, error) {
	v, err := r.client.HGet(ctx, r.sessionKey(session), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %q: %w", key, err)
	}
	return v, nil
}

// Set implements SessionStore.
func (r *Redis) Set(ctx context.Context, session, key, value string, ttl time.Duration) error {
	k := r.sessionKey(session)
	// MULTI/EXEC so the hash never exists without an expiry.
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %q: %w", key, err)
	}
	return nil
}

// Delete implements SessionStore.
func (r *Redis) Delete(ctx context.Context, session string) error {
	if err := r.client.Del(ctx, r.sessionKey(session)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping implements SessionStore.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
