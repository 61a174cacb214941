package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mmaven/paper-trader/internal/models"
)

// GetOrCreateSettings returns the user's auto-trade settings, inserting
// the default record on first access.
func (s *Postgres) GetOrCreateSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	insert := `
		INSERT INTO user_settings (user_id, min_amount, max_amount, buy_weight, sell_weight, hold_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`
	defaults := models.DefaultSettings(userID)
	_, err := s.conn.ExecContext(ctx, insert,
		userID, defaults.MinAmount, defaults.MaxAmount,
		defaults.BuyWeight, defaults.SellWeight, defaults.HoldWeight,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}

	query := `
		SELECT user_id, min_amount, max_amount, buy_weight, sell_weight, hold_weight,
		       created_at, updated_at
		FROM user_settings
		WHERE user_id = $1
	`
	var settings models.UserSettings
	err = s.conn.QueryRowContext(ctx, query, userID).Scan(
		&settings.UserID, &settings.MinAmount, &settings.MaxAmount,
		&settings.BuyWeight, &settings.SellWeight, &settings.HoldWeight,
		&settings.CreatedAt, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts a settings record.
func (s *Postgres) SaveSettings(ctx context.Context, settings *models.UserSettings) error {
	query := `
		INSERT INTO user_settings (user_id, min_amount, max_amount, buy_weight, sell_weight, hold_weight, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			buy_weight = EXCLUDED.buy_weight,
			sell_weight = EXCLUDED.sell_weight,
			hold_weight = EXCLUDED.hold_weight,
			updated_at = EXCLUDED.updated_at
	`
	settings.UpdatedAt = time.Now()
	_, err := s.conn.ExecContext(ctx, query,
		settings.UserID, settings.MinAmount, settings.MaxAmount,
		settings.BuyWeight, settings.SellWeight, settings.HoldWeight,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
