package fees

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuyCost_MinFee(t *testing.T) {
	// 10 x 600 = 6000, fee 8.55 < 20, so the minimum fee applies.
	cost, err := BuyCost(10, dec("600"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(dec("6020")), "got %s", cost)
}

func TestBuyCost_ProportionalFee(t *testing.T) {
	// 1000 x 100 = 100000, fee 142.50 > 20.
	cost, err := BuyCost(1000, dec("100"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(dec("100142.5")), "got %s", cost)
}

func TestSellProceeds_MinFee(t *testing.T) {
	// 10 x 650 = 6500, fee 9.26 < 20: 6500 - 19.5 tax - 20 min fee.
	proceeds, err := SellProceeds(10, dec("650"))
	require.NoError(t, err)
	assert.True(t, proceeds.Equal(dec("6460.5")), "got %s", proceeds)
}

func TestSellProceeds_ProportionalFee(t *testing.T) {
	// 1000 x 100 = 100000 x (1 - 0.001425 - 0.003) = 99557.5.
	proceeds, err := SellProceeds(1000, dec("100"))
	require.NoError(t, err)
	assert.True(t, proceeds.Equal(dec("99557.5")), "got %s", proceeds)
}

func TestInvalidInputs(t *testing.T) {
	cases := []struct {
		name   string
		shares int64
		price  decimal.Decimal
	}{
		{"zero shares", 0, dec("100")},
		{"negative shares", -5, dec("100")},
		{"zero price", 10, decimal.Zero},
		{"negative price", 10, dec("-1")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuyCost(tc.shares, tc.price)
			assert.ErrorIs(t, err, ErrInvalidTradeInput)
			_, err = SellProceeds(tc.shares, tc.price)
			assert.ErrorIs(t, err, ErrInvalidTradeInput)
		})
	}
}

// Fees and taxes are never subsidies: buying always costs at least the
// base amount and selling always nets at most the base amount.
func TestFeesNeverSubsidize(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		shares := rng.Int63n(5000) + 1
		price := decimal.NewFromFloat(float64(rng.Intn(200000)+1) / 100.0)
		base := price.Mul(decimal.NewFromInt(shares))

		cost, err := BuyCost(shares, price)
		require.NoError(t, err)
		assert.True(t, cost.GreaterThanOrEqual(base),
			"BuyCost(%d, %s) = %s below base %s", shares, price, cost, base)

		proceeds, err := SellProceeds(shares, price)
		require.NoError(t, err)
		assert.True(t, proceeds.LessThanOrEqual(base),
			"SellProceeds(%d, %s) = %s above base %s", shares, price, proceeds, base)
	}
}
