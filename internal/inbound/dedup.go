package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "whatsapp:inbound:"
	// DefaultDedupTTL covers Meta's webhook redelivery window.
	DefaultDedupTTL = 24 * time.Hour
)

// RedisDeduper claims WhatsApp message ids so redelivered webhooks are
// processed once.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper returns a deduper; ttl <= 0 uses DefaultDedupTTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("inbound: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Claim reports true when messageID had not been claimed yet.
func (d *RedisDeduper) Claim(ctx context.Context, messageID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+messageID, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("inbound: claim message: %w", err)
	}
	return ok, nil
}

// Release drops a claim so a retried delivery is processed again.
func (d *RedisDeduper) Release(ctx context.Context, messageID string) error {
	if err := d.client.Del(ctx, dedupKeyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("inbound: release message: %w", err)
	}
	return nil
}
