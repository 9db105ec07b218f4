package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const countriesKey = "countries:v2"

type Client struct {
	rdb      *redis.Client
	dedupTTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:      rdb,
		dedupTTL: 24 * time.Hour,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkEventSeen records a webhook event id. Returns true if this is the
// first delivery within the dedup window. Best-effort only: handlers stay
// idempotent regardless, this just saves redundant provider round trips.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:event:%s", eventID), "1", c.dedupTTL).Result()
}

// GetCountries returns the cached country metadata payload, or redis.Nil
// when the cache is cold
func (c *Client) GetCountries(ctx context.Context) ([]byte, error) {
	return c.rdb.Get(ctx, countriesKey).Bytes()
}

// SetCountries caches the raw country metadata payload
func (c *Client) SetCountries(ctx context.Context, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, countriesKey, payload, ttl).Err()
}

// IsCacheMiss reports whether an error from GetCountries means a cold cache
func IsCacheMiss(err error) bool {
	return err == redis.Nil
}
