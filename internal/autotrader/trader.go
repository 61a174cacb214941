// Package autotrader picks a buy/sell/hold action by weighted random
// choice and executes it through the ledger engine. Sells are two-phase:
// the trader persists a pending settlement and the sell executes later,
// when the user supplies a price.
package autotrader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mmaven/paper-trader/internal/catalog"
	"github.com/mmaven/paper-trader/internal/ledger"
	"github.com/mmaven/paper-trader/internal/metrics"
	"github.com/mmaven/paper-trader/internal/models"
	"github.com/mmaven/paper-trader/internal/oracle"
	"github.com/mmaven/paper-trader/internal/store"
)

// SettlementWindow is the response window advertised to the user when a
// sell awaits its price. It is advisory: the engine never expires a
// pending settlement on its own.
const SettlementWindow = 120 * time.Second

const commandAutoTrade = "autotrade"

// Action is one auto-trader decision.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Trader draws and executes auto-trade actions.
type Trader struct {
	engine  *ledger.Engine
	store   store.Store
	catalog catalog.Catalog
	oracle  oracle.PriceSource
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Trader.
type Option func(*Trader)

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Trader) { t.now = now }
}

// WithRand overrides the random source. Used by tests.
func WithRand(rng *rand.Rand) Option {
	return func(t *Trader) { t.rng = rng }
}

// New creates a Trader.
func New(engine *ledger.Engine, st store.Store, cat catalog.Catalog, src oracle.PriceSource, opts ...Option) *Trader {
	t := &Trader{
		engine:  engine,
		store:   st,
		catalog: cat,
		oracle:  src,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bounds is a per-invocation budget override. It must satisfy the same
// validation as stored settings.
type Bounds struct {
	Min int64
	Max int64
}

// Result reports the outcome of one auto-trade invocation.
type Result struct {
	Action     Action                    `json:"action"`
	Executed   bool                      `json:"executed"`
	Skipped    bool                      `json:"skipped"`
	Reason     string                    `json:"reason,omitempty"`
	Trade      *ledger.TradeResult       `json:"trade,omitempty"`
	Settlement *models.PendingSettlement `json:"settlement,omitempty"`
	MinAmount  int64                     `json:"min_amount"`
	MaxAmount  int64                     `json:"max_amount"`
}

// Execute runs one auto-trade for the user: load settings, draw an action
// by weight, and carry it out. A pending settlement blocks new invocations
// until resolved.
func (t *Trader) Execute(ctx context.Context, userID, channelID string, bounds *Bounds) (*Result, error) {
	if _, err := t.store.GetPendingSettlement(ctx, userID); err == nil {
		return nil, ledger.ErrSettlementAlreadyPending
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, &ledger.PersistenceError{Op: "autotrade", Err: err}
	}

	settings, err := t.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "autotrade", Err: err}
	}

	minAmount, maxAmount := settings.MinAmount, settings.MaxAmount
	if bounds != nil {
		if err := models.ValidateAmountRange(bounds.Min, bounds.Max); err != nil {
			return nil, err
		}
		minAmount, maxAmount = bounds.Min, bounds.Max
	}

	holdings, err := t.store.ListPositions(ctx, userID)
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "autotrade", Err: err}
	}

	// Without inventory, sell and hold are meaningless; buying is forced.
	buyW, sellW, holdW := settings.BuyWeight, settings.SellWeight, settings.HoldWeight
	if len(holdings) == 0 {
		buyW, sellW, holdW = 100, 0, 0
	}
	action := t.pickAction(buyW, sellW, holdW)
	metrics.AutoTradeActions.WithLabelValues(string(action)).Inc()

	switch action {
	case ActionBuy:
		return t.executeBuy(ctx, userID, minAmount, maxAmount)
	case ActionSell:
		return t.executeSell(ctx, userID, channelID, holdings, minAmount, maxAmount)
	default:
		return &Result{Action: ActionHold, MinAmount: minAmount, MaxAmount: maxAmount,
			Reason: "holding, no action taken"}, nil
	}
}

func (t *Trader) pickAction(buyW, sellW, holdW int) Action {
	actions := []Action{ActionBuy, ActionSell, ActionHold}
	weights := []int{buyW, sellW, holdW}

	total := 0
	for _, w := range weights {
		total += w
	}

	t.mu.Lock()
	n := t.rng.Intn(total)
	t.mu.Unlock()

	for i, w := range weights {
		if n < w {
			return actions[i]
		}
		n -= w
	}
	return ActionHold
}

// executeBuy buys a random stock with a random budget. Failures to price
// the stock or to afford a single share abandon the action without any
// ledger write; they are reported, not retried.
func (t *Trader) executeBuy(ctx context.Context, userID string, minAmount, maxAmount int64) (*Result, error) {
	result := &Result{Action: ActionBuy, MinAmount: minAmount, MaxAmount: maxAmount}

	stk, err := t.catalog.Random(ctx)
	if err != nil {
		result.Skipped = true
		result.Reason = "no stock available to buy"
		return result, nil
	}
	price, err := t.oracle.GetPrice(ctx, stk.Code)
	if err != nil || !price.IsPositive() {
		result.Skipped = true
		result.Reason = fmt.Sprintf("no usable price for %s(%s)", stk.Name, stk.Code)
		return result, nil
	}

	budget := t.engine.RandomBudget(minAmount, maxAmount)
	shares := budget.Div(price).Floor().IntPart()
	if shares == 0 {
		result.Skipped = true
		result.Reason = fmt.Sprintf("budget %s cannot buy %s(%s) at %s", budget, stk.Name, stk.Code, price)
		return result, nil
	}

	trade, err := t.engine.Buy(ctx, userID, stk, shares, price, commandAutoTrade, "automatic buy")
	if err != nil {
		return nil, err
	}
	result.Executed = true
	result.Trade = trade
	return result, nil
}

// executeSell picks one holding and a share count uniformly at random,
// captures the average cost, and persists a pending settlement. The sell
// itself runs later through HandlePriceInput.
func (t *Trader) executeSell(ctx context.Context, userID, channelID string, holdings []*models.Position, minAmount, maxAmount int64) (*Result, error) {
	t.mu.Lock()
	position := holdings[t.rng.Intn(len(holdings))]
	sharesToSell := int64(1) + t.rng.Int63n(position.Shares)
	t.mu.Unlock()

	settlement := &models.PendingSettlement{
		UserID:       userID,
		StockCode:    position.StockCode,
		StockName:    position.StockName,
		SharesToSell: sharesToSell,
		AverageCost:  position.AvgCost(),
		ChannelID:    channelID,
		CreatedAt:    t.now(),
	}
	if err := t.store.SavePendingSettlement(ctx, settlement); err != nil {
		return nil, &ledger.PersistenceError{Op: "autotrade-sell", Err: err}
	}
	metrics.PendingSettlements.Inc()

	return &Result{
		Action:     ActionSell,
		Settlement: settlement,
		MinAmount:  minAmount,
		MaxAmount:  maxAmount,
		Reason: fmt.Sprintf("awaiting sell price for %d shares of %s(%s), respond within %.0f seconds",
			sharesToSell, position.StockName, position.StockCode, SettlementWindow.Seconds()),
	}, nil
}

// PendingSettlement returns the user's in-flight settlement, or
// ledger.ErrNoPendingSettlement.
func (t *Trader) PendingSettlement(ctx context.Context, userID string) (*models.PendingSettlement, error) {
	settlement, err := t.store.GetPendingSettlement(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ledger.ErrNoPendingSettlement
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "pending-settlement", Err: err}
	}
	return settlement, nil
}
