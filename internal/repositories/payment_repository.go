package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"busticket/internal/domain"
)

const paymentStatusKeyPrefix = "payment:status:"

// PaymentStatusCache keeps the last PENDING answer of a provider for a short
// TTL so bursts of pollers on one transaction hit the provider once. Only
// PENDING is cached; terminal answers are persisted on the booking instead.
type PaymentStatusCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func (c PaymentStatusCache) key(paymentID string) string {
	return paymentStatusKeyPrefix + paymentID
}

// Get returns ok=false on a miss or when no Redis client is configured.
func (c PaymentStatusCache) Get(ctx context.Context, paymentID string) (domain.ProviderStatus, bool, error) {
	if c.Client == nil || paymentID == "" {
		return "", false, nil
	}
	v, err := c.Client.Get(ctx, c.key(paymentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("status cache get: %w", err)
	}
	return domain.ProviderStatus(v), true, nil
}

func (c PaymentStatusCache) Set(ctx context.Context, paymentID string, status domain.ProviderStatus) error {
	if c.Client == nil || paymentID == "" || status != domain.ProviderPending {
		return nil
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if err := c.Client.Set(ctx, c.key(paymentID), string(status), ttl).Err(); err != nil {
		return fmt.Errorf("status cache set: %w", err)
	}
	return nil
}

func (c PaymentStatusCache) Invalidate(ctx context.Context, paymentID string) error {
	if c.Client == nil || paymentID == "" {
		return nil
	}
	return c.Client.Del(ctx, c.key(paymentID)).Err()
}
