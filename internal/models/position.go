package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a user's current holding of one stock.
// TotalCost is the cost basis of the currently held shares, fees included.
// Rows are never deleted; a fully sold position stays at zero shares.
type Position struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	StockCode string          `json:"stock_code"`
	StockName string          `json:"stock_name"`
	Shares    int64           `json:"shares"`
	TotalCost decimal.Decimal `json:"total_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AvgCost returns the average cost basis per share. Zero when no shares
// are held.
func (p *Position) AvgCost() decimal.Decimal {
	if p.Shares <= 0 {
		return decimal.Zero
	}
	return p.TotalCost.Div(decimal.NewFromInt(p.Shares))
}
