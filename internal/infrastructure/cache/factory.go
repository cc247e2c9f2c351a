package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Stores bundles the Redis- or memory-backed stores the services depend on
type Stores struct {
	Idempotency paymentapp.IdempotencyStore
	Summary     reportapp.SummaryCache
	// Backend is "redis" or "memory"
	Backend string
	close   func() error
}

// Close releases the Redis connection or stops the in-memory cleanup loop
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unreachable.
// Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStores connects to Redis and builds both stores on one client
func (f *StoreFactory) CreateRedisStores() (*Stores, error) {
	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis stores: %w", err)
	}
	return newRedisStores(client, f.logger), nil
}

func newRedisStores(client *redis.Client, logger *zap.Logger) *Stores {
	return &Stores{
		Idempotency: NewRedisIdempotencyStoreWithClient(client, ""),
		Summary:     NewRedisSummaryCache(client, logger),
		Backend:     "redis",
		close:       client.Close,
	}
}

// CreateInMemoryStores builds process-local stores.
// They do not share state across instances, so redelivered submissions may be recorded twice
// when requests land on different replicas.
func (f *StoreFactory) CreateInMemoryStores() *Stores {
	idem := NewInMemoryIdempotencyStore()
	return &Stores{
		Idempotency: idem,
		Summary:     NewMemorySummaryCache(),
		Backend:     "memory",
		close:       idem.Close,
	}
}

// CreateStores uses Redis when a host is configured, falling back to memory if allowed
func (f *StoreFactory) CreateStores() (*Stores, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory stores")
		return f.CreateInMemoryStores(), nil
	}

	stores, err := f.CreateRedisStores()
	if err == nil {
		f.logger.Info("using Redis stores", zap.String("addr", f.redisConfig.Addr()))
		return stores, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Duplicate submissions may not be detected across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStores(), nil
}
