package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Static serves fixed prices. It backs local runs and tests.
type Static struct {
	prices map[string]decimal.Decimal
	now    func() time.Time
}

func NewStatic(prices map[string]decimal.Decimal) *Static {
	normalized := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		normalized[strings.ToUpper(sym)] = p
	}
	return &Static{prices: normalized, now: time.Now}
}

func (s *Static) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := s.prices[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return domain.Quote{Symbol: symbol, UnitPrice: price, AsOf: s.now().UTC(), Source: "static"}, nil
}

// ParseStaticPrices reads "BTC=15000000,ETH=5000000".
func ParseStaticPrices(raw string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("static price %q: expected SYMBOL=PRICE", pair)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("static price %q: %w", pair, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("static price %q: must be positive", pair)
		}
		prices[strings.ToUpper(strings.TrimSpace(sym))] = price
	}
	return prices, nil
}
