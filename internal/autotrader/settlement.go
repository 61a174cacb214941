package autotrader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmaven/paper-trader/internal/catalog"
	"github.com/mmaven/paper-trader/internal/ledger"
	"github.com/mmaven/paper-trader/internal/metrics"
	"github.com/mmaven/paper-trader/internal/store"
)

// ErrInvalidPriceInput means the input did not parse as a positive number.
// The pending settlement stays intact; the user may resubmit.
var ErrInvalidPriceInput = errors.New("price input must be a positive number")

// HandlePriceInput resolves a pending settlement with a user-supplied
// price. A malformed or non-positive input is retryable and leaves the
// settlement in place. A valid price executes the sell using the average
// cost captured at proposal time; after that point the settlement is
// cleared no matter what, so a failed sell aborts the settlement rather
// than leaving the user stuck.
func (t *Trader) HandlePriceInput(ctx context.Context, userID, input string) (*ledger.TradeResult, error) {
	settlement, err := t.PendingSettlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil || !price.IsPositive() {
		metrics.SettlementsTotal.WithLabelValues("invalid_input").Inc()
		return nil, ErrInvalidPriceInput
	}

	stk := catalog.Stock{Code: settlement.StockCode, Name: settlement.StockName}
	trade, err := t.engine.SettleSell(ctx, userID, stk,
		settlement.SharesToSell, settlement.AverageCost, price,
		commandAutoTrade, "automatic sell settlement")
	if err != nil {
		// The happy path resolves the settlement atomically with the
		// sell; on failure it must still be cleared so the user's next
		// message is treated as a command again.
		if delErr := t.store.DeletePendingSettlement(ctx, userID); delErr != nil && !errors.Is(delErr, store.ErrNotFound) {
			log.Printf("Error clearing settlement for user %s: %v", userID, delErr)
		}
		metrics.PendingSettlements.Dec()
		metrics.SettlementsTotal.WithLabelValues("aborted").Inc()
		return nil, fmt.Errorf("settlement aborted: %w", err)
	}

	metrics.PendingSettlements.Dec()
	metrics.SettlementsTotal.WithLabelValues("settled").Inc()
	return trade, nil
}
