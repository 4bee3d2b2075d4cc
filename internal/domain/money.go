package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	microsPerUnit = decimal.NewFromInt(1_000_000)
	maxMicros     = decimal.NewFromInt(math.MaxInt64)
)

// Money is an amount held as integer micros (10^-6 of a unit).
type Money struct {
	Micros   int64
	Currency string
}

func NewMoney(micros int64, currency string) Money {
	return Money{Micros: micros, Currency: currency}
}

// Settlement wraps micros of the settlement currency.
func Settlement(micros int64) Money {
	return NewMoney(micros, SettlementCurrency)
}

func (m Money) Decimal() decimal.Decimal {
	return FromMicros(m.Micros)
}

// FromMicros converts int64 micros to a decimal amount.
func FromMicros(micros int64) decimal.Decimal {
	return decimal.NewFromInt(micros).Div(microsPerUnit)
}

// FitsMicros reports whether d rounds to a micros value in [0, math.MaxInt64].
func FitsMicros(d decimal.Decimal) bool {
	m := d.Round(6).Mul(microsPerUnit)
	return !m.IsNegative() && m.LessThanOrEqual(maxMicros)
}

// ToMicros rounds d half away from zero to the nearest micro. Callers check
// FitsMicros first; out of range values wrap.
func ToMicros(d decimal.Decimal) int64 {
	return d.Round(6).Mul(microsPerUnit).IntPart()
}

// String renders two decimals with thousands separators, e.g. "1,500.25 NGN".
func (m Money) String() string {
	fixed := m.Decimal().StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString("." + frac + " " + m.Currency)
	return b.String()
}
