// Package oracle fetches current market prices. The engine treats any
// failure, timeout, or non-positive price identically as "unavailable".
package oracle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable means no usable price could be obtained.
var ErrUnavailable = errors.New("no usable price")

// PriceSource returns the current market price for a stock code.
type PriceSource interface {
	GetPrice(ctx context.Context, stockCode string) (decimal.Decimal, error)
}

// PriceFunc adapts a function to PriceSource. Used by tests.
type PriceFunc func(ctx context.Context, stockCode string) (decimal.Decimal, error)

func (f PriceFunc) GetPrice(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	return f(ctx, stockCode)
}
