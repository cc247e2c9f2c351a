package cache

import (
	"testing"

	"github.com/rentalops/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFactory_NoHostUsesMemory(t *testing.T) {
	stores, err := NewStoreFactory(config.RedisConfig{}).CreateStores()
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, "memory", stores.Backend)
	assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
	assert.IsType(t, &MemorySummaryCache{}, stores.Summary)
}

func TestStoreFactory_UnreachableRedis(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	t.Run("falls back to memory", func(t *testing.T) {
		stores, err := NewStoreFactory(cfg).CreateStores()
		require.NoError(t, err)
		defer stores.Close()
		assert.Equal(t, "memory", stores.Backend)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		_, err := NewStoreFactory(cfg, WithInMemoryFallback(false)).CreateStores()
		assert.Error(t, err)
	})
}
