package redis

import (
	"BackOffice/internal/core/ports"
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "backoffice:idempotency:"

// IdempotencyStore claims keys with SET NX so several instances share one view.
type IdempotencyStore struct {
	client *goredis.Client
	log    zerolog.Logger
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore parses url, connects and pings the server.
func NewIdempotencyStore(ctx context.Context, url string, baseLogger *zerolog.Logger) (*IdempotencyStore, error) {
	log := baseLogger.With().Str("component", "redis_idempotency").Logger()

	opt, err := goredis.ParseURL(url)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse Redis URL")
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("Failed to ping Redis")
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", opt.Addr).Msg("Redis idempotency store connected")
	return &IdempotencyStore{client: client, log: log}, nil
}

// Claim returns true when this call created the key.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to claim idempotency key")
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Close closes the client.
func (s *IdempotencyStore) Close() error {
	s.log.Info().Msg("Closing Redis client")
	return s.client.Close()
}
