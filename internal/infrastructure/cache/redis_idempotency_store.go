package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/infrastructure/config"
)

const defaultIdempotencyKeyPrefix = "payment:idempotency:"

// RedisIdempotencyStore implements IdempotencyStore using Redis so that every
// instance behind the load balancer sees the same reservations
type RedisIdempotencyStore struct {
	client     *redis.Client
	keyPrefix  string
	ownsClient bool
}

// NewRedisClient connects to Redis and verifies the connection with a PING
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store that owns its client
func NewRedisIdempotencyStore(cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	store := NewRedisIdempotencyStoreWithClient(client, "")
	store.ownsClient = true
	return store, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client.
// The caller retains ownership of the client.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Reserve claims key for value with SETNX. When the key is already held, the held value is returned.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	redisKey := s.keyPrefix + key

	ok, err := s.client.SetNX(ctx, redisKey, value, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return value, true, nil
	}

	existing, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more
		ok, err = s.client.SetNX(ctx, redisKey, value, ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if ok {
			return value, true, nil
		}
		existing, err = s.client.Get(ctx, redisKey).Result()
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return existing, false, nil
}

// Release drops the reservation of key
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client when the store created it
func (s *RedisIdempotencyStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisIdempotencyStore) GetClient() *redis.Client {
	return s.client
}

var _ paymentapp.IdempotencyStore = (*RedisIdempotencyStore)(nil)
