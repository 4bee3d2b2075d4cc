package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPriceBuyAppliesMarkup(t *testing.T) {
	quote := &Quote{Symbol: "BTC", UnitPrice: dec("15000000"), AsOf: time.Now()}
	p, err := DefaultFeeSchedule().Price(KindBuy, "btc", dec("0.01"), quote)
	require.NoError(t, err)

	assert.Equal(t, "BTC", p.Asset)
	assert.True(t, p.UnitPrice.Equal(dec("15750000")), p.UnitPrice.String())
	assert.Equal(t, int64(157_500_000_000), p.SettlementMicros())
	assert.True(t, p.Fee.Equal(dec("7500")), p.Fee.String())
}

func TestPriceSellAppliesFee(t *testing.T) {
	quote := &Quote{Symbol: "USDT", UnitPrice: dec("750"), AsOf: time.Now()}
	p, err := DefaultFeeSchedule().Price(KindSell, "USDT", dec("100"), quote)
	require.NoError(t, err)

	assert.True(t, p.UnitPrice.Equal(dec("712.5")))
	assert.Equal(t, int64(71_250_000_000), p.SettlementMicros())
}

func TestPriceQuotedKindsRequireQuote(t *testing.T) {
	_, err := DefaultFeeSchedule().Price(KindBuy, "BTC", dec("1"), nil)
	require.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestPriceDepositTieredFee(t *testing.T) {
	fees := DefaultFeeSchedule()
	fees.DepositFeeThreshold = dec("1000")
	fees.DepositFeeRateBelow = dec("0.02")
	fees.DepositFeeRateAbove = dec("0.01")

	small, err := fees.Price(KindDeposit, "", dec("500"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(490_000_000), small.SettlementMicros())
	assert.Equal(t, SettlementCurrency, small.Asset)

	large, err := fees.Price(KindDeposit, "", dec("2000"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1_980_000_000), large.SettlementMicros())
}

func TestPriceWithdrawAddsFee(t *testing.T) {
	fees := DefaultFeeSchedule()
	fees.WithdrawFeeRate = dec("0.015")

	p, err := fees.Price(KindWithdraw, "", dec("1000"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1_015_000_000), p.SettlementMicros())
	assert.Equal(t, int64(15_000_000), p.FeeMicros())
}

func TestPriceDefaultsChargeNothingOnPlainKinds(t *testing.T) {
	for _, kind := range []Kind{KindDeposit, KindWithdraw, KindTransfer, KindCredit, KindDebit, KindRefund} {
		p, err := DefaultFeeSchedule().Price(kind, "", dec("1500"), nil)
		require.NoError(t, err, kind)
		assert.Equal(t, int64(1_500_000_000), p.SettlementMicros(), kind)
		assert.True(t, p.Fee.IsZero(), kind)
	}
}

func TestPriceRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []string{"0", "-5", "0.0000001"} {
		_, err := DefaultFeeSchedule().Price(KindDeposit, "", dec(amount), nil)
		require.ErrorIs(t, err, ErrInvalidInput, amount)
	}
}

func TestPriceRejectsSwap(t *testing.T) {
	_, err := DefaultFeeSchedule().Price(KindSwap, "", dec("1"), nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPriceRejectsAmountsPastMicrosRange(t *testing.T) {
	huge := dec("18446744073710.551616")
	cases := []struct {
		name  string
		kind  Kind
		quote *Quote
	}{
		{name: "deposit", kind: KindDeposit},
		{name: "withdraw", kind: KindWithdraw},
		{name: "credit", kind: KindCredit},
		{name: "buy", kind: KindBuy, quote: &Quote{Symbol: "BTC", UnitPrice: dec("15000000"), AsOf: time.Now()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DefaultFeeSchedule().Price(tc.kind, "", huge, tc.quote)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// The largest representable settlement still prices.
	p, err := DefaultFeeSchedule().Price(KindCredit, "", dec("9223372036854.775807"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), p.SettlementMicros())

	// A quote that cannot be held as micros is refused even for a small amount.
	_, err = DefaultFeeSchedule().Price(KindBuy, "DOGE", dec("0.000001"), &Quote{Symbol: "DOGE", UnitPrice: dec("1e20"), AsOf: time.Now()})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFitsMicros(t *testing.T) {
	assert.True(t, FitsMicros(decimal.Zero))
	assert.True(t, FitsMicros(dec("9223372036854.775807")))
	assert.False(t, FitsMicros(dec("9223372036854.775808")))
	assert.False(t, FitsMicros(dec("-0.01")))
}
