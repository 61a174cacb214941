// Package fees computes buy costs and sell proceeds under the Taiwan
// retail fee schedule: a 0.1425% handling fee with a $20 minimum on both
// sides, plus a 0.3% securities transaction tax on sells.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// HandlingFeeRate is charged on both buys and sells.
	HandlingFeeRate = decimal.NewFromFloat(0.001425)
	// MinFee is the floor applied when the computed handling fee is lower.
	MinFee = decimal.NewFromInt(20)
	// TransactionTaxRate applies to sells only.
	TransactionTaxRate = decimal.NewFromFloat(0.003)
)

// ErrInvalidTradeInput is returned for non-positive shares or prices.
var ErrInvalidTradeInput = errors.New("invalid trade input: shares and price must be positive")

// Each sub-amount is rounded to 2 decimal places as it is computed, not
// just the final figure. The rounding order matters for reproducing
// historical ledger values exactly.

// BuyCost returns the total cash outlay for buying shares at price,
// including the handling fee.
func BuyCost(shares int64, price decimal.Decimal) (decimal.Decimal, error) {
	if shares <= 0 || !price.IsPositive() {
		return decimal.Zero, ErrInvalidTradeInput
	}
	base := price.Mul(decimal.NewFromInt(shares))
	fee := base.Mul(HandlingFeeRate).Round(2)
	if fee.LessThan(MinFee) {
		fee = MinFee
	}
	return base.Add(fee).Round(2), nil
}

// SellProceeds returns the net cash received for selling shares at price,
// after the handling fee and transaction tax.
func SellProceeds(shares int64, price decimal.Decimal) (decimal.Decimal, error) {
	if shares <= 0 || !price.IsPositive() {
		return decimal.Zero, ErrInvalidTradeInput
	}
	base := price.Mul(decimal.NewFromInt(shares))
	fee := base.Mul(HandlingFeeRate).Round(2)
	if fee.LessThan(MinFee) {
		tax := base.Mul(TransactionTaxRate)
		return base.Sub(tax).Sub(MinFee).Round(2), nil
	}
	keep := decimal.NewFromInt(1).Sub(HandlingFeeRate).Sub(TransactionTaxRate)
	return base.Mul(keep).Round(2), nil
}
