package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is an alternative primary tier.
type Redis struct {
	client       *redis.Client
	prefix       string
	maxItemBytes int
}

// ConnectRedis parses redisURL (falling back to a bare address) and pings the server.
func ConnectRedis(ctx context.Context, redisURL, prefix string, maxItemBytes int) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedis(client, prefix, maxItemBytes), nil
}

// NewRedis wraps an existing client. Keys are stored under prefix.
func NewRedis(client *redis.Client, prefix string, maxItemBytes int) *Redis {
	return &Redis{client: client, prefix: prefix, maxItemBytes: maxItemBytes}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Message: "redis GET failed", Cause: err}
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if r.maxItemBytes > 0 && len(value) > r.maxItemBytes {
		return quotaError("set", key, fmt.Sprintf("value of %d bytes exceeds the %d byte limit", len(value), r.maxItemBytes), nil)
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		if isRedisOOM(err) {
			return quotaError("set", key, "redis is out of memory", err)
		}
		return &Error{Op: "set", Key: key, Message: "redis SET failed", Cause: err}
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return &Error{Op: "delete", Key: key, Message: "redis DEL failed", Cause: err}
	}
	return nil
}

func isRedisOOM(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr) && strings.HasPrefix(redisErr.Error(), "OOM")
}
