// Package idempotency rejects replays of non-idempotent requests that carry
// the same Idempotency-Key within a TTL.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"invoice-bookkeeping-backend/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store remembers claimed keys until their TTL expires.
type Store interface {
	// Claim records key and reports whether it was free.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
	Close() error
}

// NewStore returns a redis store when redis is enabled, otherwise an
// in-process one.
func NewStore(cfg config.RedisConfig, log *zap.Logger) (Store, error) {
	if !cfg.Enabled {
		log.Info("idempotency keys kept in memory")
		return NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), err)
	}
	log.Info("idempotency keys kept in redis", zap.String("addr", cfg.Addr()))
	return NewRedisStore(client, ""), nil
}
