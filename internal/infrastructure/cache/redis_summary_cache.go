package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/domain/report"
	"go.uber.org/zap"
)

const generationKeyPrefix = "summary:generation:"

// RedisSummaryCache implements SummaryCache using Redis
type RedisSummaryCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSummaryCache creates a summary cache on an existing client. The caller retains ownership of the client.
func NewRedisSummaryCache(client *redis.Client, logger *zap.Logger) *RedisSummaryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSummaryCache{client: client, logger: logger}
}

// Get retrieves a cached summary
func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*report.Summary, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get summary from cache: %w", err)
	}

	var summary report.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		c.logger.Warn("Dropping corrupted summary cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return nil, false, nil
	}
	return &summary, true, nil
}

// Set stores a summary under key for ttl
func (c *RedisSummaryCache) Set(ctx context.Context, key string, summary *report.Summary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set summary in cache: %w", err)
	}
	return nil
}

// Generation returns the current generation of scope, 0 when it was never bumped
func (c *RedisSummaryCache) Generation(ctx context.Context, scope string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKeyPrefix+scope).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read summary generation: %w", err)
	}
	return gen, nil
}

// Bump increments the generation of scope, orphaning every summary cached under the previous one
func (c *RedisSummaryCache) Bump(ctx context.Context, scope string) error {
	if err := c.client.Incr(ctx, generationKeyPrefix+scope).Err(); err != nil {
		return fmt.Errorf("failed to bump summary generation: %w", err)
	}
	return nil
}

var _ reportapp.SummaryCache = (*RedisSummaryCache)(nil)
