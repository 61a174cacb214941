package ledger

import (
	"errors"
	"fmt"

	"github.com/mmaven/paper-trader/internal/fees"
)

// ErrInvalidTradeInput rejects non-positive shares, prices, or amounts.
// Shared with the fee calculator, which performs the same validation.
var ErrInvalidTradeInput = fees.ErrInvalidTradeInput

var (
	// ErrNoSuchHolding rejects a cost adjustment on a stock the user does
	// not currently hold.
	ErrNoSuchHolding = errors.New("no current holding for this stock")

	// ErrPriceUnavailable means the price oracle returned no usable price.
	// The triggering operation aborts with no state change.
	ErrPriceUnavailable = errors.New("stock price unavailable")

	// ErrBudgetTooSmall means the drawn budget cannot buy a single share.
	ErrBudgetTooSmall = errors.New("budget too small to buy a single share")

	// ErrTradeAlreadyPending blocks a new proposal while one awaits
	// confirmation.
	ErrTradeAlreadyPending = errors.New("a trade proposal is already pending")

	// ErrSettlementAlreadyPending blocks a new auto-trade while a sell
	// awaits its price input.
	ErrSettlementAlreadyPending = errors.New("a settlement is already awaiting a price")

	// ErrNoPendingTrade rejects confirm/cancel with nothing pending.
	ErrNoPendingTrade = errors.New("no pending trade proposal")

	// ErrNoPendingSettlement rejects a settlement price with nothing pending.
	ErrNoPendingSettlement = errors.New("no pending settlement")
)

// InsufficientHoldingsError reports a sell exceeding the current position.
type InsufficientHoldingsError struct {
	StockCode string
	Held      int64
	Requested int64
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings of %s: have %d shares, requested %d",
		e.StockCode, e.Held, e.Requested)
}

// PersistenceError wraps a store failure. The engine guarantees no partial
// writes occurred; retrying is up to the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
