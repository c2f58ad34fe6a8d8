// internal/pkg/cache/cache.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the small keyed TTL store shared across process instances: it
// carries the metrics-backfill lease and handle-keyed denormalized artifacts
// such as avatar URLs.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

const (
	leasePrefix  = "lease:"
	avatarPrefix = "avatar:"

	// DefaultAvatarTTL bounds how long a copied artifact outlives its source.
	DefaultAvatarTTL = 30 * 24 * time.Hour
)

// AcquireLease takes a keyed lease with an expiry. Returns false when another
// holder already owns the key. Cross-process by design: concurrent ingest
// invocations on different instances must not duplicate a backfill fetch.
func (c *Cache) AcquireLease(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, leasePrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %q: %w", key, err)
	}
	return ok, nil
}

// ReleaseLease drops a lease early. Leaving it to expire is also fine.
func (c *Cache) ReleaseLease(ctx context.Context, key string) error {
	return c.client.Del(ctx, leasePrefix+key).Err()
}

// GetAvatar returns the cached avatar URL for a handle, or "" when absent.
func (c *Cache) GetAvatar(ctx context.Context, handle string) (string, error) {
	val, err := c.client.Get(ctx, avatarPrefix+handle).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get avatar for %q: %w", handle, err)
	}
	return val, nil
}

// SetAvatar stores an avatar URL under a handle key.
func (c *Cache) SetAvatar(ctx context.Context, handle, url string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultAvatarTTL
	}
	return c.client.Set(ctx, avatarPrefix+handle, url, ttl).Err()
}

// CopyAvatar copies the artifact from one handle key to another, keeping the
// target's value when it is already set. Used during merges so the survivor
// does not lose the loser's avatar.
func (c *Cache) CopyAvatar(ctx context.Context, fromHandle, toHandle string) error {
	existing, err := c.GetAvatar(ctx, toHandle)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	source, err := c.GetAvatar(ctx, fromHandle)
	if err != nil {
		return err
	}
	if source == "" {
		return nil
	}

	return c.SetAvatar(ctx, toHandle, source, DefaultAvatarTTL)
}
