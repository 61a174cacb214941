package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mmaven/paper-trader/internal/models"
)

// Postgres implements Store on top of PostgreSQL.
type Postgres struct {
	conn *sql.DB
}

// NewPostgres opens a PostgreSQL-backed store.
func NewPostgres(connectionString string) (*Postgres, error) {
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{conn: conn}, nil
}

// NewPostgresFromConn wraps an existing connection. Used by tests.
func NewPostgresFromConn(conn *sql.DB) *Postgres {
	return &Postgres{conn: conn}
}

// Close closes the database connection.
func (s *Postgres) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying database connection.
func (s *Postgres) Conn() *sql.DB {
	return s.conn
}

// Ping checks if the database is reachable.
func (s *Postgres) Ping() error {
	return s.conn.Ping()
}

// ApplyTrade commits the update in a single transaction. The pending-row
// deletes run first so a missing row aborts before anything is written.
func (s *Postgres) ApplyTrade(ctx context.Context, update *TradeUpdate) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if update.ResolvePendingTrade {
		if err := deletePendingRow(ctx, tx, "pending_trades", update.Entry.UserID); err != nil {
			return err
		}
	}
	if update.ResolvePendingSettlement {
		if err := deletePendingRow(ctx, tx, "pending_settlements", update.Entry.UserID); err != nil {
			return err
		}
	}

	if update.Position != nil {
		if err := upsertPosition(ctx, tx, update.Position); err != nil {
			return err
		}
	}

	if err := insertTransaction(ctx, tx, update.Entry); err != nil {
		return err
	}

	if update.PnL != nil {
		if err := insertRealizedPnL(ctx, tx, update.PnL); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade: %w", err)
	}
	return nil
}

func deletePendingRow(ctx context.Context, tx *sql.Tx, table, userID string) error {
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), userID)
	if err != nil {
		return fmt.Errorf("failed to resolve %s row: %w", table, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func upsertPosition(ctx context.Context, tx *sql.Tx, p *models.Position) error {
	query := `
		INSERT INTO positions (user_id, stock_code, stock_name, shares, total_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, stock_code)
		DO UPDATE SET
			stock_name = EXCLUDED.stock_name,
			shares = EXCLUDED.shares,
			total_cost = EXCLUDED.total_cost,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	p.UpdatedAt = time.Now()
	err := tx.QueryRowContext(ctx, query,
		p.UserID, p.StockCode, p.StockName, p.Shares, p.TotalCost, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", p.StockCode, err)
	}
	return nil
}
