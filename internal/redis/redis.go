// Package redis holds the optional delivery-deduplication store. When
// no redis host is configured the bot runs without it and every webhook
// delivery is treated as unseen.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"devrelay/internal/config"
)

const deliveryKeyPrefix = "devrelay:delivery:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis and verifies the connection. cfg.Host must be
// non-empty; callers skip construction entirely when dedup is disabled.
func New(ctx context.Context, cfg *config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return &Store{client: client, ttl: cfg.DedupTTL}, nil
}

// SeenDelivery reports whether a webhook delivery GUID was relayed
// within the TTL window. GitHub redelivers on timeouts; replays inside
// the window are dropped by the caller. The GUID is only recorded by
// MarkDelivery after the relay succeeds, so a delivery rejected as
// malformed can still be redelivered.
func (s *Store) SeenDelivery(ctx context.Context, id string) (bool, error) {
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := s.client.Exists(c, deliveryKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists failed: %w", err)
	}
	return n > 0, nil
}

// MarkDelivery records a relayed delivery GUID for the TTL window.
func (s *Store) MarkDelivery(ctx context.Context, id string) error {
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.Set(c, deliveryKeyPrefix+id, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis: close failed: %w", err)
	}
	return nil
}
