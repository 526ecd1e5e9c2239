package cache

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

func TestOpenIdempotencyStore_RedisDisabled(t *testing.T) {
	store, client, err := OpenIdempotencyStore(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	assert.Nil(t, client)
}

func TestOpenIdempotencyStore_FallsBackWhenAllowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	store, client, err := OpenIdempotencyStore(context.Background(), unreachableRedis,
		WithLogger(zap.New(core)),
		WithInMemoryFallback(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	assert.Nil(t, client)
	assert.Equal(t, 1, logs.FilterMessage("Redis unreachable, using in-memory idempotency store").Len())
}

func TestOpenIdempotencyStore_FailsWithoutFallback(t *testing.T) {
	store, client, err := OpenIdempotencyStore(context.Background(), unreachableRedis)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis is required")
	assert.Nil(t, store)
	assert.Nil(t, client)
}
