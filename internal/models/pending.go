package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingTrade is a proposed buy awaiting user confirmation. At most one
// exists per user; confirming or cancelling deletes it, and that delete is
// what guarantees a proposal resolves exactly once.
type PendingTrade struct {
	UserID    string          `json:"user_id"`
	StockCode string          `json:"stock_code"`
	StockName string          `json:"stock_name"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// PendingSettlement is an in-flight auto-trade sell waiting for the user
// to supply a price. AverageCost is captured at proposal time and is the
// cost basis used at settlement, even if the position changes in between.
type PendingSettlement struct {
	UserID       string          `json:"user_id"`
	StockCode    string          `json:"stock_code"`
	StockName    string          `json:"stock_name"`
	SharesToSell int64           `json:"shares_to_sell"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	ChannelID    string          `json:"channel_id"`
	CreatedAt    time.Time       `json:"created_at"`
}
