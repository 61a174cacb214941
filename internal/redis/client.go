// Package redis wraps the Redis client with quote-cache operations.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmaven/paper-trader/internal/config"
)

// Client wraps the Redis client with stock-price caching operations.
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client.
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetStockPrice caches a stock price with TTL.
func (c *Client) SetStockPrice(ctx context.Context, stockCode string, price float64, ttl time.Duration) error {
	key := fmt.Sprintf("stock:%s:price", stockCode)
	return c.rdb.Set(ctx, key, price, ttl).Err()
}

// GetStockPrice retrieves a cached stock price. Returns an error on a
// cache miss (redis.Nil).
func (c *Client) GetStockPrice(ctx context.Context, stockCode string) (float64, error) {
	key := fmt.Sprintf("stock:%s:price", stockCode)
	return c.rdb.Get(ctx, key).Float64()
}
