package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/config"
)

// IdempotencyStoreFactory picks the idempotency backend at startup. Redis is
// preferred; the in-memory store is an opt-in fallback for environments that
// run a single instance.
type IdempotencyStoreFactory struct {
	cfg           config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

// IdempotencyStoreFactoryOption adjusts factory behavior.
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger routes the factory's backend-selection log lines through the
// given logger.
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis downgrades to
// the in-memory store. Enabled unless overridden; production wiring turns it
// off so replay protection never silently loses cross-instance coverage.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowFallback = allow
	}
}

// NewIdempotencyStoreFactory builds a factory around the Redis settings.
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		cfg:           cfg,
		logger:        zap.NewNop(),
		allowFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore connects to Redis, downgrading to the in-memory store when
// Redis is unreachable and the fallback is allowed.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := f.CreateRedisStore()
	switch {
	case err == nil:
		f.logger.Info("using Redis idempotency store")
		return store, nil
	case !f.allowFallback:
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Duplicate batch submissions may not be caught across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}

// CreateRedisStore connects to the configured Redis without any fallback.
func (f *IdempotencyStoreFactory) CreateRedisStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     f.cfg.Host,
		Port:     f.cfg.Port,
		Password: f.cfg.Password,
		DB:       f.cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis idempotency store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore builds the process-local store. Retried submissions
// routed to another instance will not be caught.
func (f *IdempotencyStoreFactory) CreateInMemoryStore() shared.IdempotencyStore {
	return NewInMemoryIdempotencyStore()
}
