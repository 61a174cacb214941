// Package ledger implements the trading ledger engine: position upkeep,
// fee-aware trade execution, realized P&L accounting, and the two-phase
// random-trade flow. Every mutating operation commits as a single atomic
// store update or fails with no partial writes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmaven/paper-trader/internal/catalog"
	"github.com/mmaven/paper-trader/internal/fees"
	"github.com/mmaven/paper-trader/internal/metrics"
	"github.com/mmaven/paper-trader/internal/models"
	"github.com/mmaven/paper-trader/internal/oracle"
	"github.com/mmaven/paper-trader/internal/store"
)

// Random trade proposals draw a budget from this fixed range, in steps of
// 1000.
const (
	ProposalMinBudget int64 = 5000
	ProposalMaxBudget int64 = 100000
	budgetStep        int64 = 1000
)

// Engine orchestrates all ledger operations against the store. It holds no
// per-user state between calls; the two-phase flows resume purely from the
// persisted pending records.
type Engine struct {
	store   store.Store
	catalog catalog.Catalog
	oracle  oracle.PriceSource
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand overrides the random source. Used by tests.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// New creates a ledger engine.
func New(st store.Store, cat catalog.Catalog, src oracle.PriceSource, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		catalog: cat,
		oracle:  src,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TradeResult reports an executed trade: the position's new state, the
// journal entry written, and the realized P&L record for sells.
type TradeResult struct {
	Position *models.Position    `json:"position"`
	Entry    *models.Transaction `json:"entry"`
	PnL      *models.RealizedPnL `json:"pnl,omitempty"`
}

// Buy purchases shares at the given price, charging the handling fee on
// top of the base amount.
func (e *Engine) Buy(ctx context.Context, userID string, stk catalog.Stock, shares int64, price decimal.Decimal, command, note string) (*TradeResult, error) {
	amount, err := fees.BuyCost(shares, price)
	if err != nil {
		return nil, err
	}
	return e.executeBuy(ctx, userID, stk, shares, price, amount, command, note, false)
}

func (e *Engine) executeBuy(ctx context.Context, userID string, stk catalog.Stock, shares int64, price, amount decimal.Decimal, command, note string, resolvePending bool) (*TradeResult, error) {
	position := &models.Position{
		UserID:    userID,
		StockCode: stk.Code,
		StockName: stk.Name,
		TotalCost: decimal.Zero,
	}
	current, err := e.store.GetPosition(ctx, userID, stk.Code)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, &PersistenceError{Op: "buy", Err: err}
	}
	if current != nil {
		position = current
		position.StockName = stk.Name
	}
	position.Shares += shares
	position.TotalCost = position.TotalCost.Add(amount)

	entry := &models.Transaction{
		UserID:    userID,
		Timestamp: e.now(),
		Command:   command,
		Type:      models.TransactionBuy,
		StockCode: stk.Code,
		StockName: stk.Name,
		Shares:    shares,
		Price:     price,
		Amount:    amount,
		Note:      note,
	}

	update := &store.TradeUpdate{
		Position:            position,
		Entry:               entry,
		ResolvePendingTrade: resolvePending,
	}
	if err := e.store.ApplyTrade(ctx, update); err != nil {
		if resolvePending && errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoPendingTrade
		}
		return nil, &PersistenceError{Op: "buy", Err: err}
	}

	if resolvePending {
		metrics.PendingTrades.Dec()
	}
	metrics.TradesTotal.WithLabelValues(string(models.TransactionBuy)).Inc()
	return &TradeResult{Position: position, Entry: entry}, nil
}

// Sell sells shares at the given price. The cost basis of the sold shares
// (average cost x shares) is removed from the position and the difference
// between net proceeds and cost basis is recorded as realized P&L.
func (e *Engine) Sell(ctx context.Context, userID string, stk catalog.Stock, shares int64, price decimal.Decimal, command, note string) (*TradeResult, error) {
	if shares <= 0 || !price.IsPositive() {
		return nil, ErrInvalidTradeInput
	}
	position, err := e.heldPosition(ctx, userID, stk.Code, shares, "sell")
	if err != nil {
		return nil, err
	}
	// Average cost is captured before any mutation.
	return e.executeSell(ctx, position, stk, shares, position.AvgCost(), price, command, note, false)
}

// SettleSell executes the sell half of an auto-trade settlement: the cost
// basis comes from the pending settlement, not the current position, and
// the pending settlement row is resolved in the same atomic update.
func (e *Engine) SettleSell(ctx context.Context, userID string, stk catalog.Stock, shares int64, avgCost, price decimal.Decimal, command, note string) (*TradeResult, error) {
	if shares <= 0 || !price.IsPositive() {
		return nil, ErrInvalidTradeInput
	}
	position, err := e.heldPosition(ctx, userID, stk.Code, shares, "settlement")
	if err != nil {
		return nil, err
	}
	return e.executeSell(ctx, position, stk, shares, avgCost, price, command, note, true)
}

func (e *Engine) heldPosition(ctx context.Context, userID, stockCode string, shares int64, op string) (*models.Position, error) {
	position, err := e.store.GetPosition(ctx, userID, stockCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &InsufficientHoldingsError{StockCode: stockCode, Held: 0, Requested: shares}
	}
	if err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}
	if position.Shares < shares {
		return nil, &InsufficientHoldingsError{StockCode: stockCode, Held: position.Shares, Requested: shares}
	}
	return position, nil
}

func (e *Engine) executeSell(ctx context.Context, position *models.Position, stk catalog.Stock, shares int64, avgCost, price decimal.Decimal, command, note string, resolveSettlement bool) (*TradeResult, error) {
	proceeds, err := fees.SellProceeds(shares, price)
	if err != nil {
		return nil, err
	}
	costBasis := avgCost.Mul(decimal.NewFromInt(shares))
	profitLoss := proceeds.Sub(costBasis).Round(2)

	position.Shares -= shares
	position.TotalCost = position.TotalCost.Sub(costBasis)

	timestamp := e.now()
	entry := &models.Transaction{
		UserID:    position.UserID,
		Timestamp: timestamp,
		Command:   command,
		Type:      models.TransactionSell,
		StockCode: stk.Code,
		StockName: stk.Name,
		Shares:    -shares,
		Price:     price,
		Amount:    proceeds,
		Note:      note,
	}
	pnl := &models.RealizedPnL{
		UserID:     position.UserID,
		Timestamp:  timestamp,
		StockCode:  stk.Code,
		StockName:  stk.Name,
		Shares:     shares,
		BuyPrice:   avgCost,
		SellPrice:  price,
		ProfitLoss: profitLoss,
		Note:       note,
	}

	update := &store.TradeUpdate{
		Position:                 position,
		Entry:                    entry,
		PnL:                      pnl,
		ResolvePendingSettlement: resolveSettlement,
	}
	if err := e.store.ApplyTrade(ctx, update); err != nil {
		if resolveSettlement && errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoPendingSettlement
		}
		return nil, &PersistenceError{Op: "sell", Err: err}
	}

	metrics.TradesTotal.WithLabelValues(string(models.TransactionSell)).Inc()
	return &TradeResult{Position: position, Entry: entry, PnL: pnl}, nil
}

// AdjustResult reports a manual average-cost correction.
type AdjustResult struct {
	Position   *models.Position `json:"position"`
	OldAvgCost decimal.Decimal  `json:"old_avg_cost"`
	NewAvgCost decimal.Decimal  `json:"new_avg_cost"`
}

// AdjustCost sets the position's total cost to newAvgCost x shares. Share
// count is untouched and no P&L is recognized; this is a correction tool,
// not a trade.
func (e *Engine) AdjustCost(ctx context.Context, userID string, stk catalog.Stock, newAvgCost decimal.Decimal) (*AdjustResult, error) {
	if !newAvgCost.IsPositive() {
		return nil, ErrInvalidTradeInput
	}
	position, err := e.store.GetPosition(ctx, userID, stk.Code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSuchHolding
	}
	if err != nil {
		return nil, &PersistenceError{Op: "adjust-cost", Err: err}
	}
	if position.Shares <= 0 {
		return nil, ErrNoSuchHolding
	}

	oldAvgCost := position.AvgCost()
	position.TotalCost = newAvgCost.Mul(decimal.NewFromInt(position.Shares))

	entry := &models.Transaction{
		UserID:    userID,
		Timestamp: e.now(),
		Command:   "adjust-cost",
		Type:      models.TransactionAdjust,
		StockCode: stk.Code,
		StockName: stk.Name,
		Price:     decimal.Zero,
		Amount:    decimal.Zero,
		Note: fmt.Sprintf("average cost adjusted from %s to %s",
			oldAvgCost.Round(2), newAvgCost.Round(2)),
	}

	update := &store.TradeUpdate{Position: position, Entry: entry}
	if err := e.store.ApplyTrade(ctx, update); err != nil {
		return nil, &PersistenceError{Op: "adjust-cost", Err: err}
	}

	return &AdjustResult{Position: position, OldAvgCost: oldAvgCost, NewAvgCost: newAvgCost}, nil
}

// PnLStats returns the user's realized P&L running total and win/loss
// counts.
func (e *Engine) PnLStats(ctx context.Context, userID string) (*models.PnLStats, error) {
	stats, err := e.store.RealizedPnLStats(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "pnl-stats", Err: err}
	}
	if decided := stats.Wins + stats.Losses; decided > 0 {
		stats.WinRate = float64(stats.Wins) / float64(decided)
	}
	return stats, nil
}

// ClearRealizedPnL brings the user's realized P&L running total back to
// zero by appending one synthetic offsetting entry; prior entries are never
// mutated or deleted. Returns the pre-clear total, which is zero when there
// was nothing to clear.
func (e *Engine) ClearRealizedPnL(ctx context.Context, userID string) (decimal.Decimal, error) {
	stats, err := e.store.RealizedPnLStats(ctx, userID)
	if err != nil {
		return decimal.Zero, &PersistenceError{Op: "pnl-clear", Err: err}
	}
	if stats.Total.IsZero() {
		return decimal.Zero, nil
	}

	offset := &models.RealizedPnL{
		UserID:     userID,
		Timestamp:  e.now(),
		StockCode:  "SYSTEM",
		StockName:  "P&L reset",
		BuyPrice:   decimal.Zero,
		SellPrice:  decimal.Zero,
		ProfitLoss: stats.Total.Neg(),
		Note:       "realized p&l cleared to zero",
	}
	if err := e.store.AppendRealizedPnL(ctx, offset); err != nil {
		return decimal.Zero, &PersistenceError{Op: "pnl-clear", Err: err}
	}
	return stats.Total, nil
}

// Portfolio returns the user's positive-share positions.
func (e *Engine) Portfolio(ctx context.Context, userID string) ([]*models.Position, error) {
	positions, err := e.store.ListPositions(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "portfolio", Err: err}
	}
	return positions, nil
}

// RecentTransactions returns the user's newest journal entries.
func (e *Engine) RecentTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	entries, err := e.store.RecentTransactions(ctx, userID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "transactions", Err: err}
	}
	return entries, nil
}

// PendingTrade returns the user's pending proposal, or ErrNoPendingTrade.
func (e *Engine) PendingTrade(ctx context.Context, userID string) (*models.PendingTrade, error) {
	trade, err := e.store.GetPendingTrade(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPendingTrade
	}
	if err != nil {
		return nil, &PersistenceError{Op: "pending-trade", Err: err}
	}
	return trade, nil
}

// HasPendingTrade reports whether a proposal awaits confirmation. The
// command surface uses this to gate other trading commands.
func (e *Engine) HasPendingTrade(ctx context.Context, userID string) (bool, error) {
	_, err := e.PendingTrade(ctx, userID)
	if errors.Is(err, ErrNoPendingTrade) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ProposeRandomTrade picks a random stock and budget and persists a buy
// proposal awaiting confirmation. The position is not touched yet. The
// pending check runs first: an existing proposal aborts before the catalog
// or the oracle is consulted.
func (e *Engine) ProposeRandomTrade(ctx context.Context, userID string) (*models.PendingTrade, error) {
	pending, err := e.HasPendingTrade(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrTradeAlreadyPending
	}

	stk, err := e.catalog.Random(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pick a stock: %w", err)
	}
	price, err := e.oracle.GetPrice(ctx, stk.Code)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s(%s)", ErrPriceUnavailable, stk.Name, stk.Code)
	}

	budget := e.randomBudget(ProposalMinBudget, ProposalMaxBudget)
	shares := budget.Div(price).Floor().IntPart()
	if shares == 0 {
		return nil, fmt.Errorf("%w: budget %s cannot buy %s(%s) at %s",
			ErrBudgetTooSmall, budget, stk.Name, stk.Code, price)
	}
	amount, err := fees.BuyCost(shares, price)
	if err != nil {
		return nil, err
	}

	trade := &models.PendingTrade{
		UserID:    userID,
		StockCode: stk.Code,
		StockName: stk.Name,
		Shares:    shares,
		Price:     price,
		Amount:    amount,
		CreatedAt: e.now(),
	}
	if err := e.store.SavePendingTrade(ctx, trade); err != nil {
		return nil, &PersistenceError{Op: "propose-trade", Err: err}
	}
	metrics.PendingTrades.Inc()
	return trade, nil
}

// ConfirmPendingTrade executes the pending proposal as a buy, using the
// shares, price, and amount captured at proposal time, and deletes the
// proposal in the same atomic update. A second confirmation finds no
// pending row and fails with ErrNoPendingTrade.
func (e *Engine) ConfirmPendingTrade(ctx context.Context, userID string) (*TradeResult, error) {
	trade, err := e.PendingTrade(ctx, userID)
	if err != nil {
		return nil, err
	}
	stk := catalog.Stock{Code: trade.StockCode, Name: trade.StockName}
	return e.executeBuy(ctx, userID, stk, trade.Shares, trade.Price, trade.Amount,
		"random->confirm", "confirmed random trade proposal", true)
}

// CancelPendingTrade discards the pending proposal.
func (e *Engine) CancelPendingTrade(ctx context.Context, userID string) error {
	err := e.store.DeletePendingTrade(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoPendingTrade
	}
	if err != nil {
		return &PersistenceError{Op: "cancel-trade", Err: err}
	}
	metrics.PendingTrades.Dec()
	return nil
}

// RandomBudget draws a budget from [min, max] in steps of 1000, inclusive
// on both ends.
func (e *Engine) RandomBudget(min, max int64) decimal.Decimal {
	return e.randomBudget(min, max)
}

func (e *Engine) randomBudget(min, max int64) decimal.Decimal {
	steps := (max-min)/budgetStep + 1
	e.mu.Lock()
	n := e.rng.Int63n(steps)
	e.mu.Unlock()
	return decimal.NewFromInt(min + n*budgetStep)
}

// ResolveStock finds a stock by code or display name; exact code match
// takes priority over name match.
func (e *Engine) ResolveStock(ctx context.Context, identifier string) (catalog.Stock, error) {
	return e.catalog.Lookup(ctx, strings.TrimSpace(identifier))
}
