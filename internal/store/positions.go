package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmaven/paper-trader/internal/models"
)

// GetPosition retrieves one (user, stock) holding, including zero-share rows.
func (s *Postgres) GetPosition(ctx context.Context, userID, stockCode string) (*models.Position, error) {
	query := `
		SELECT id, user_id, stock_code, stock_name, shares, total_cost, updated_at
		FROM positions
		WHERE user_id = $1 AND stock_code = $2
	`
	var p models.Position
	err := s.conn.QueryRowContext(ctx, query, userID, stockCode).Scan(
		&p.ID, &p.UserID, &p.StockCode, &p.StockName, &p.Shares, &p.TotalCost, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &p, nil
}

// ListPositions retrieves the user's positive-share holdings. Zero-share
// rows persist as history anchors but are filtered out here.
func (s *Postgres) ListPositions(ctx context.Context, userID string) ([]*models.Position, error) {
	query := `
		SELECT id, user_id, stock_code, stock_name, shares, total_cost, updated_at
		FROM positions
		WHERE user_id = $1 AND shares > 0
		ORDER BY stock_code
	`
	rows, err := s.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var p models.Position
		err := rows.Scan(
			&p.ID, &p.UserID, &p.StockCode, &p.StockName, &p.Shares, &p.TotalCost, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	return positions, nil
}
