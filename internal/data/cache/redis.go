package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/macrocorr/internal/domain"
)

// ObservationCache caches fetched observation slices in Redis so repeated
// runs within the TTL skip provider round-trips. Cache failures are soft:
// callers fall back to a direct fetch.
type ObservationCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New connects to Redis and verifies the connection with a short ping.
func New(addr, password string, db int, ttl time.Duration) (*ObservationCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client; used by tests with redismock.
func NewWithClient(client *redis.Client, ttl time.Duration) *ObservationCache {
	return &ObservationCache{client: client, ttl: ttl, prefix: "macrocorr:obs:"}
}

func (c *ObservationCache) key(source, id string) string {
	return c.prefix + source + ":" + id
}

// Get returns cached observations for a provider series id; the second
// return is false on a miss.
func (c *ObservationCache) Get(ctx context.Context, source, id string) ([]domain.Observation, bool, error) {
	val, err := c.client.Get(ctx, c.key(source, id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var obs []domain.Observation
	if err := json.Unmarshal([]byte(val), &obs); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return obs, true, nil
}

// Set stores observations for a provider series id with the cache TTL.
func (c *ObservationCache) Set(ctx context.Context, source, id string, obs []domain.Observation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(source, id), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *ObservationCache) Close() error {
	return c.client.Close()
}
