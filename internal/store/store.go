// Package store defines the persistence interface for the trading ledger.
// PostgreSQL is the production backend; an in-memory implementation exists
// for testing.
package store

import (
	"context"
	"errors"

	"github.com/mmaven/paper-trader/internal/models"
)

// ErrNotFound is returned when a requested record does not exist. Delete
// operations also return it when there was nothing to delete, which lets
// callers use delete as a compare-and-delete primitive.
var ErrNotFound = errors.New("record not found")

// TradeUpdate is one atomic ledger mutation: the position's new absolute
// state, the journal entry recording the operation, an optional realized
// P&L record for sells, and optional resolution of a pending record. The
// whole update commits or none of it does; if a Resolve flag is set and no
// pending row exists, the update fails with ErrNotFound and writes nothing.
type TradeUpdate struct {
	Position *models.Position
	Entry    *models.Transaction
	PnL      *models.RealizedPnL

	ResolvePendingTrade      bool
	ResolvePendingSettlement bool
}

// Store is the persistence interface consumed by the ledger engine and the
// auto-trader. All records are keyed by user id; implementations must
// serialize writes per user key but need no global lock.
type Store interface {
	// GetPosition returns the holding for one (user, stock) pair, including
	// zero-share rows. ErrNotFound if the user never held the stock.
	GetPosition(ctx context.Context, userID, stockCode string) (*models.Position, error)

	// ListPositions returns the user's positive-share holdings ordered by
	// stock code.
	ListPositions(ctx context.Context, userID string) ([]*models.Position, error)

	// ApplyTrade commits one TradeUpdate atomically.
	ApplyTrade(ctx context.Context, update *TradeUpdate) error

	// RecentTransactions returns the user's newest journal entries, most
	// recent first.
	RecentTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// RealizedPnLStats returns the running total and win/loss counts of the
	// user's realized P&L history.
	RealizedPnLStats(ctx context.Context, userID string) (*models.PnLStats, error)

	// AppendRealizedPnL appends a standalone realized P&L entry, used for
	// synthetic offsetting records.
	AppendRealizedPnL(ctx context.Context, entry *models.RealizedPnL) error

	// GetOrCreateSettings returns the user's settings, creating the default
	// record on first access.
	GetOrCreateSettings(ctx context.Context, userID string) (*models.UserSettings, error)

	// SaveSettings upserts a settings record.
	SaveSettings(ctx context.Context, settings *models.UserSettings) error

	GetPendingTrade(ctx context.Context, userID string) (*models.PendingTrade, error)
	SavePendingTrade(ctx context.Context, trade *models.PendingTrade) error
	DeletePendingTrade(ctx context.Context, userID string) error

	GetPendingSettlement(ctx context.Context, userID string) (*models.PendingSettlement, error)
	SavePendingSettlement(ctx context.Context, settlement *models.PendingSettlement) error
	DeletePendingSettlement(ctx context.Context, userID string) error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)
