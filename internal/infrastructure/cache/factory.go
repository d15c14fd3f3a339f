package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// Coordination bundles the stores that keep webhook deliveries and scheduled
// runs from being applied twice.
type Coordination struct {
	Deliveries shared.IdempotencyStore
	Locks      shared.RunLock
	client     *redis.Client
}

// Distributed reports whether state is shared through Redis
func (c *Coordination) Distributed() bool {
	return c.client != nil
}

// Close releases the underlying stores
func (c *Coordination) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return c.Deliveries.Close()
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when
// Redis is enabled but unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// Factory creates coordination stores based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InMemory creates process-local stores
func (f *Factory) InMemory() *Coordination {
	return &Coordination{
		Deliveries: NewInMemoryIdempotencyStore(),
		Locks:      NewInMemoryRunLock(),
	}
}

// Create returns Redis-backed stores when Redis is enabled, falling back to
// process-local stores when it is unreachable and fallback is allowed.
func (f *Factory) Create(ctx context.Context) (*Coordination, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory locks and delivery store")
		return f.InMemory(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis locks and delivery store", zap.String("addr", f.redisConfig.Addr()))
		return &Coordination{
			Deliveries: NewRedisIdempotencyStore(client, ""),
			Locks:      NewRedisRunLock(client, ""),
			client:     client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory locks and delivery store. "+
		"Fleet runs are only guarded within this instance.",
		zap.Error(err),
	)
	return f.InMemory(), nil
}
