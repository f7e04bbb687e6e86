package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireVendorLock takes the advisory lock serializing applies per vendor.
// Returns false when another dispatch holds it.
func (c *Client) AcquireVendorLock(ctx context.Context, vendor string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockKey(vendor), "1", ttl).Result()
}

// ReleaseVendorLock drops the advisory lock.
func (c *Client) ReleaseVendorLock(ctx context.Context, vendor string) error {
	return c.rdb.Del(ctx, lockKey(vendor)).Err()
}

// SetLastHash caches the most recently applied diff hash for a vendor.
// Postgres stays authoritative.
func (c *Client) SetLastHash(ctx context.Context, vendor, hash string) error {
	return c.rdb.Set(ctx, hashKey(vendor), hash, 0).Err()
}

// GetLastHash returns the cached hash, or "" on miss.
func (c *Client) GetLastHash(ctx context.Context, vendor string) (string, error) {
	val, err := c.rdb.Get(ctx, hashKey(vendor)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func lockKey(vendor string) string {
	return fmt.Sprintf("vendor-sync:lock:%s", vendor)
}

func hashKey(vendor string) string {
	return fmt.Sprintf("vendor-sync:last-hash:%s", vendor)
}
