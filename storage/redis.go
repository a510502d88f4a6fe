package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores keys under "<prefix>:<key>" in a Redis deployment.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis returns a store over redisClient. A zero ttl keeps keys until
// they are deleted.
func NewRedis(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "cl"
	}
	return &Redis{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Redis) key(k string) string {
	return s.prefix + ":" + k
}

// Get returns the value for key and whether it exists.
func (s *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
