package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmaven/paper-trader/internal/models"
)

// GetPendingTrade returns the user's pending trade proposal, if any.
func (s *Postgres) GetPendingTrade(ctx context.Context, userID string) (*models.PendingTrade, error) {
	query := `
		SELECT user_id, stock_code, stock_name, shares, price, amount, created_at
		FROM pending_trades
		WHERE user_id = $1
	`
	var t models.PendingTrade
	err := s.conn.QueryRowContext(ctx, query, userID).Scan(
		&t.UserID, &t.StockCode, &t.StockName, &t.Shares, &t.Price, &t.Amount, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending trade: %w", err)
	}
	return &t, nil
}

// SavePendingTrade stores the user's pending trade, replacing any prior one.
func (s *Postgres) SavePendingTrade(ctx context.Context, t *models.PendingTrade) error {
	query := `
		INSERT INTO pending_trades (user_id, stock_code, stock_name, shares, price, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			stock_code = EXCLUDED.stock_code,
			stock_name = EXCLUDED.stock_name,
			shares = EXCLUDED.shares,
			price = EXCLUDED.price,
			amount = EXCLUDED.amount,
			created_at = EXCLUDED.created_at
	`
	_, err := s.conn.ExecContext(ctx, query,
		t.UserID, t.StockCode, t.StockName, t.Shares, t.Price, t.Amount, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pending trade: %w", err)
	}
	return nil
}

// DeletePendingTrade removes the user's pending trade. ErrNotFound if none
// exists, so cancellation cannot race a concurrent confirmation.
func (s *Postgres) DeletePendingTrade(ctx context.Context, userID string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM pending_trades WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pending trade: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPendingSettlement returns the user's in-flight auto-trade sell, if any.
func (s *Postgres) GetPendingSettlement(ctx context.Context, userID string) (*models.PendingSettlement, error) {
	query := `
		SELECT user_id, stock_code, stock_name, shares_to_sell, average_cost, channel_id, created_at
		FROM pending_settlements
		WHERE user_id = $1
	`
	var p models.PendingSettlement
	err := s.conn.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.StockCode, &p.StockName, &p.SharesToSell, &p.AverageCost, &p.ChannelID, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending settlement: %w", err)
	}
	return &p, nil
}

// SavePendingSettlement stores the user's pending settlement, replacing any
// prior one.
func (s *Postgres) SavePendingSettlement(ctx context.Context, p *models.PendingSettlement) error {
	query := `
		INSERT INTO pending_settlements (user_id, stock_code, stock_name, shares_to_sell, average_cost, channel_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			stock_code = EXCLUDED.stock_code,
			stock_name = EXCLUDED.stock_name,
			shares_to_sell = EXCLUDED.shares_to_sell,
			average_cost = EXCLUDED.average_cost,
			channel_id = EXCLUDED.channel_id,
			created_at = EXCLUDED.created_at
	`
	_, err := s.conn.ExecContext(ctx, query,
		p.UserID, p.StockCode, p.StockName, p.SharesToSell, p.AverageCost, p.ChannelID, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pending settlement: %w", err)
	}
	return nil
}

// DeletePendingSettlement removes the user's pending settlement.
// ErrNotFound if none exists.
func (s *Postgres) DeletePendingSettlement(ctx context.Context, userID string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM pending_settlements WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pending settlement: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
