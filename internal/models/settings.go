package models

import (
	"errors"
	"time"
)

// Default auto-trade settings applied on first access and on reset.
const (
	DefaultMinAmount  = 5000
	DefaultMaxAmount  = 100000
	DefaultBuyWeight  = 35
	DefaultSellWeight = 30
	DefaultHoldWeight = 35
)

var (
	ErrAmountTooSmall = errors.New("amounts must be at least 1000")
	ErrAmountRange    = errors.New("min amount must be less than max amount")
	ErrRangeTooSmall  = errors.New("amount range must span at least 1000")
	ErrNegativeWeight = errors.New("weights must not be negative")
	ErrZeroWeights    = errors.New("at least one weight must be positive")
)

// UserSettings holds a user's auto-trade preferences: the budget range for
// automatic buys and the relative weights of the buy/sell/hold actions.
type UserSettings struct {
	UserID     string    `json:"user_id"`
	MinAmount  int64     `json:"min_amount"`
	MaxAmount  int64     `json:"max_amount"`
	BuyWeight  int       `json:"buy_weight"`
	SellWeight int       `json:"sell_weight"`
	HoldWeight int       `json:"hold_weight"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DefaultSettings returns the default settings for a user.
func DefaultSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:     userID,
		MinAmount:  DefaultMinAmount,
		MaxAmount:  DefaultMaxAmount,
		BuyWeight:  DefaultBuyWeight,
		SellWeight: DefaultSellWeight,
		HoldWeight: DefaultHoldWeight,
	}
}

// ValidateAmountRange checks a min/max budget pair. The same rules apply
// to stored settings and to per-invocation overrides.
func ValidateAmountRange(min, max int64) error {
	if min < 1000 || max < 1000 {
		return ErrAmountTooSmall
	}
	if min >= max {
		return ErrAmountRange
	}
	if max-min < 1000 {
		return ErrRangeTooSmall
	}
	return nil
}

// ValidateWeights checks an action-weight triple.
func ValidateWeights(buy, sell, hold int) error {
	if buy < 0 || sell < 0 || hold < 0 {
		return ErrNegativeWeight
	}
	if buy+sell+hold == 0 {
		return ErrZeroWeights
	}
	return nil
}

// Validate checks the full settings record.
func (s *UserSettings) Validate() error {
	if err := ValidateAmountRange(s.MinAmount, s.MaxAmount); err != nil {
		return err
	}
	return ValidateWeights(s.BuyWeight, s.SellWeight, s.HoldWeight)
}
