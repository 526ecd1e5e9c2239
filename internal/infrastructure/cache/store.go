// Package cache provides the idempotency stores that stop redelivered outbox events from
// being applied twice.
package cache

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type openOptions struct {
	logger    *zap.Logger
	fallback  bool
	keyPrefix string
}

// Option configures OpenIdempotencyStore
type Option func(*openOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithInMemoryFallback lets OpenIdempotencyStore use process memory when Redis cannot be
// reached. Several instances sharing an outbox must not run this way.
func WithInMemoryFallback(allow bool) Option {
	return func(o *openOptions) { o.fallback = allow }
}

func WithKeyPrefix(prefix string) Option {
	return func(o *openOptions) { o.keyPrefix = prefix }
}

// OpenIdempotencyStore picks the store for cfg. With Redis enabled it also returns the
// connected client so other components can share it; otherwise the client is nil.
func OpenIdempotencyStore(ctx context.Context, cfg config.RedisConfig, opts ...Option) (shared.IdempotencyStore, *redis.Client, error) {
	o := openOptions{logger: zap.NewNop(), keyPrefix: DefaultRedisKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.logger.Info("Redis disabled, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil, nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if !o.fallback {
			return nil, nil, fmt.Errorf("redis is required for idempotency: %w", err)
		}
		o.logger.Warn("Redis unreachable, using in-memory idempotency store", zap.Error(err))
		return NewInMemoryIdempotencyStore(), nil, nil
	}

	o.logger.Info("Using Redis idempotency store", zap.String("addr", client.Options().Addr))
	return NewRedisIdempotencyStore(client, o.keyPrefix), client, nil
}
