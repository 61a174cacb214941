package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a journal entry.
type TransactionType string

const (
	TransactionBuy    TransactionType = "buy"
	TransactionSell   TransactionType = "sell"
	TransactionAdjust TransactionType = "adjust"
	TransactionSystem TransactionType = "system"
)

// Transaction is one append-only journal entry for an executed operation.
// Shares and Amount are signed: positive for buys, negative share deltas
// for sells. Entries are immutable once written.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Command   string          `json:"command"`
	Type      TransactionType `json:"type"`
	StockCode string          `json:"stock_code"`
	StockName string          `json:"stock_name"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
}

// RealizedPnL is one append-only realized profit/loss record, written at
// the moment shares are sold. Clearing the running total appends a
// synthetic offsetting entry instead of touching prior rows.
type RealizedPnL struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
	StockCode  string          `json:"stock_code"`
	StockName  string          `json:"stock_name"`
	Shares     int64           `json:"shares"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price"`
	ProfitLoss decimal.Decimal `json:"profit_loss"`
	Note       string          `json:"note,omitempty"`
}

// PnLStats summarizes a user's realized profit/loss history. WinRate is
// wins over decided entries (wins plus losses); break-even entries do not
// count against it.
type PnLStats struct {
	Total   decimal.Decimal `json:"total"`
	Entries int             `json:"entries"`
	Wins    int             `json:"wins"`
	Losses  int             `json:"losses"`
	WinRate float64         `json:"win_rate"`
}
