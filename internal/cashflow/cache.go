package cashflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const versionKeyPrefix = "cashflow:version"

// Cache stores projections in Redis under per-client versioned keys. A nil
// Cache always calls the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A non-positive ttl disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func versionKey(clientID uuid.UUID) string {
	return versionKeyPrefix + ":" + clientID.String()
}

// Version returns the client's current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, clientID uuid.UUID) (int64, error) {
	if c == nil {
		return 0, nil
	}
	key := versionKey(clientID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the client's current version.
func (c *Cache) BuildKey(ctx context.Context, clientID uuid.UUID, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"cashflow", clientID.String()}, parts...), ":")
	if c == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, clientID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cashflow cache: loader required")
	}
	if c != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached projection of the client.
func (c *Cache) Bump(ctx context.Context, clientID uuid.UUID) error {
	if c == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(clientID)).Err()
}

// Invalidate satisfies ledger.Invalidator.
func (c *Cache) Invalidate(ctx context.Context, clientID uuid.UUID) error {
	return c.Bump(ctx, clientID)
}
