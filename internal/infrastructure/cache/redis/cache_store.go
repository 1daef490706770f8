package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/walletledger/internal/application/ports"
)

// Compile-time check
var _ ports.CacheStore = (*Store)(nil)

// Store implements ports.CacheStore on a Redis client. Every key is
// namespaced with the configured prefix, so several services can share
// one Redis instance without colliding.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a Store over an already-connected client.
func NewStore(client *redis.Client, keyPrefix string) *Store {
	return &Store{
		client: client,
		prefix: keyPrefix,
	}
}

// key applies the namespace prefix.
func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get returns the value and whether the key exists. redis.Nil is a miss,
// not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value with a TTL, overwriting any existing entry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetNX stores the value only if the key is absent. Returns true when this
// call won the key. This is the lease primitive of the idempotency pipeline.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Del removes the key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity, for health probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
