package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a unit price of an asset in settlement currency.
type Quote struct {
	Symbol    string          `json:"symbol"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AsOf      time.Time       `json:"as_of"`
	Source    string          `json:"source"`
}

// ListedPrice is a market quote alongside the prices a user would buy and sell at.
type ListedPrice struct {
	Symbol      string          `json:"symbol"`
	MarketPrice decimal.Decimal `json:"market_price"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	AsOf        time.Time       `json:"as_of"`
	Source      string          `json:"source"`
}

// FeeSchedule holds the per-kind pricing parameters. Rates are fractions, 0.05 = 5%.
type FeeSchedule struct {
	BuyMarkupRate       decimal.Decimal
	SellFeeRate         decimal.Decimal
	DepositFeeThreshold decimal.Decimal
	DepositFeeRateBelow decimal.Decimal
	DepositFeeRateAbove decimal.Decimal
	WithdrawFeeRate     decimal.Decimal
	TransferFeeRate     decimal.Decimal
}

// DefaultFeeSchedule charges the buy markup and sell fee only.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		BuyMarkupRate: decimal.RequireFromString("0.05"),
		SellFeeRate:   decimal.RequireFromString("0.05"),
	}
}

// UnitPrices applies the buy markup and sell fee to a market price.
func (f FeeSchedule) UnitPrices(market decimal.Decimal) (buy, sell decimal.Decimal) {
	one := decimal.NewFromInt(1)
	return market.Mul(one.Add(f.BuyMarkupRate)), market.Mul(one.Sub(f.SellFeeRate))
}

// List renders q for a price board.
func (f FeeSchedule) List(q Quote) ListedPrice {
	buy, sell := f.UnitPrices(q.UnitPrice)
	return ListedPrice{
		Symbol:      q.Symbol,
		MarketPrice: q.UnitPrice,
		BuyPrice:    buy,
		SellPrice:   sell,
		AsOf:        q.AsOf,
		Source:      q.Source,
	}
}

// Pricing is the outcome of pricing a request before it is persisted.
type Pricing struct {
	Kind            Kind            `json:"kind"`
	Asset           string          `json:"asset"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Fee             decimal.Decimal `json:"fee"`
	Settlement      decimal.Decimal `json:"settlement"`
	QuotedAt        *time.Time      `json:"quoted_at,omitempty"`
}

func (p Pricing) UnitPriceMicros() int64 { return ToMicros(p.UnitPrice) }
func (p Pricing) FeeMicros() int64 { return ToMicros(p.Fee) }
func (p Pricing) SettlementMicros() int64 { return ToMicros(p.Settlement) }

// Price computes the settlement amount for kind. quote is required for buy and sell.
func (f FeeSchedule) Price(kind Kind, asset string, amount decimal.Decimal, quote *Quote) (Pricing, error) {
	if !amount.IsPositive() {
		return Pricing{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	}
	p := Pricing{
		Kind:            kind,
		Asset:           strings.ToUpper(strings.TrimSpace(asset)),
		RequestedAmount: amount,
		UnitPrice:       decimal.Zero,
		Fee:             decimal.Zero,
	}
	if p.Asset == "" {
		p.Asset = SettlementCurrency
	}

	switch kind {
	case KindBuy, KindSell:
		if quote == nil || !quote.UnitPrice.IsPositive() {
			return Pricing{}, fmt.Errorf("%w: no quote for %s", ErrPriceUnavailable, p.Asset)
		}
		buy, sell := f.UnitPrices(quote.UnitPrice)
		p.UnitPrice = buy
		if kind == KindSell {
			p.UnitPrice = sell
		}
		p.Settlement = amount.Mul(p.UnitPrice)
		p.Fee = amount.Mul(quote.UnitPrice).Sub(p.Settlement).Abs()
		asOf := quote.AsOf
		p.QuotedAt = &asOf
	case KindDeposit:
		rate := f.DepositFeeRateAbove
		if amount.LessThan(f.DepositFeeThreshold) {
			rate = f.DepositFeeRateBelow
		}
		p.Fee = amount.Mul(rate)
		p.Settlement = amount.Sub(p.Fee)
	case KindWithdraw:
		p.Fee = amount.Mul(f.WithdrawFeeRate)
		p.Settlement = amount.Add(p.Fee)
	case KindTransfer:
		p.Fee = amount.Mul(f.TransferFeeRate)
		p.Settlement = amount.Add(p.Fee)
	case KindCredit, KindDebit, KindRefund:
		p.Settlement = amount
	default:
		return Pricing{}, fmt.Errorf("%w: kind %q cannot be priced", ErrInvalidInput, kind)
	}

	if !FitsMicros(p.Settlement) || !FitsMicros(p.Fee) || !FitsMicros(p.UnitPrice) {
		return Pricing{}, fmt.Errorf("%w: amount is too large", ErrInvalidInput)
	}
	if p.SettlementMicros() <= 0 {
		return Pricing{}, fmt.Errorf("%w: settlement amount rounds to zero", ErrInvalidInput)
	}
	return p, nil
}
