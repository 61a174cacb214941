package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmaven/paper-trader/internal/models"
)

func insertTransaction(ctx context.Context, tx *sql.Tx, entry *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			user_id, timestamp, command, transaction_type,
			stock_code, stock_name, shares, price, amount, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		entry.UserID, entry.Timestamp, entry.Command, entry.Type,
		entry.StockCode, entry.StockName, entry.Shares, entry.Price, entry.Amount, entry.Note,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func insertRealizedPnL(ctx context.Context, tx *sql.Tx, entry *models.RealizedPnL) error {
	query := `
		INSERT INTO profit_loss (
			user_id, timestamp, stock_code, stock_name,
			shares, buy_price, sell_price, profit_loss, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		entry.UserID, entry.Timestamp, entry.StockCode, entry.StockName,
		entry.Shares, entry.BuyPrice, entry.SellPrice, entry.ProfitLoss, entry.Note,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert profit/loss record: %w", err)
	}
	return nil
}

// RecentTransactions returns the user's newest journal entries, most
// recent first.
func (s *Postgres) RecentTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, timestamp, command, transaction_type,
		       stock_code, stock_name, shares, price, amount, note
		FROM transactions
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`
	rows, err := s.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var entries []*models.Transaction
	for rows.Next() {
		var e models.Transaction
		var note sql.NullString
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Timestamp, &e.Command, &e.Type,
			&e.StockCode, &e.StockName, &e.Shares, &e.Price, &e.Amount, &note,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		e.Note = note.String
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return entries, nil
}

// RealizedPnLStats returns the running total and win/loss counts for the
// user's realized P&L history.
func (s *Postgres) RealizedPnLStats(ctx context.Context, userID string) (*models.PnLStats, error) {
	query := `
		SELECT COALESCE(SUM(profit_loss), 0) AS total,
		       COUNT(*) AS entries,
		       COALESCE(SUM(CASE WHEN profit_loss > 0 THEN 1 ELSE 0 END), 0) AS wins,
		       COALESCE(SUM(CASE WHEN profit_loss < 0 THEN 1 ELSE 0 END), 0) AS losses
		FROM profit_loss
		WHERE user_id = $1
	`
	var stats models.PnLStats
	err := s.conn.QueryRowContext(ctx, query, userID).Scan(
		&stats.Total, &stats.Entries, &stats.Wins, &stats.Losses,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profit/loss stats: %w", err)
	}
	return &stats, nil
}

// AppendRealizedPnL appends a standalone realized P&L entry outside of a
// trade, used for the synthetic offsetting record written by a clear.
func (s *Postgres) AppendRealizedPnL(ctx context.Context, entry *models.RealizedPnL) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRealizedPnL(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profit/loss record: %w", err)
	}
	return nil
}
