package oracle

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache is the quote cache consumed by the cached source. The Redis
// client satisfies it.
type PriceCache interface {
	GetStockPrice(ctx context.Context, stockCode string) (float64, error)
	SetStockPrice(ctx context.Context, stockCode string, price float64, ttl time.Duration) error
}

// Cached is a read-through cache in front of another price source. Cache
// failures are logged and treated as misses; they never fail a lookup.
type Cached struct {
	source PriceSource
	cache  PriceCache
	ttl    time.Duration
}

// NewCached wraps source with a read-through price cache.
func NewCached(source PriceSource, cache PriceCache, ttl time.Duration) *Cached {
	return &Cached{source: source, cache: cache, ttl: ttl}
}

func (c *Cached) GetPrice(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	if cached, err := c.cache.GetStockPrice(ctx, stockCode); err == nil && cached > 0 {
		return decimal.NewFromFloat(cached).Round(2), nil
	}

	price, err := c.source.GetPrice(ctx, stockCode)
	if err != nil {
		return decimal.Zero, err
	}

	fl, _ := price.Float64()
	if err := c.cache.SetStockPrice(ctx, stockCode, fl, c.ttl); err != nil {
		log.Printf("Warning: failed to cache price for %s: %v", stockCode, err)
	}
	return price, nil
}
