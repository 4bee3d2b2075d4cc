// Package pricefeed provides price oracles that quote assets in the settlement currency.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var ErrUnknownSymbol = errors.New("unknown asset symbol")

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	coinGeckoSource     = "coingecko"
)

// DefaultCoinIDs maps the asset symbols users trade to CoinGecko coin ids.
var DefaultCoinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
	"USDC": "usd-coin",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"TRX":  "tron",
}

// CoinGecko quotes spot prices from the CoinGecko simple price API.
type CoinGecko struct {
	client   *resty.Client
	coinIDs  map[string]string
	currency string
}

func NewCoinGecko(baseURL, apiKey string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &CoinGecko{
		client:   client,
		coinIDs:  DefaultCoinIDs,
		currency: strings.ToLower(domain.SettlementCurrency),
	}
}

// Quote returns the unit price of symbol in settlement currency.
func (c *CoinGecko) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	coinID, ok := c.coinIDs[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	var result map[string]map[string]decimal.Decimal
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                     coinID,
			"vs_currencies":           c.currency,
			"include_last_updated_at": "true",
		}).
		SetResult(&result).
		Get("/simple/price")
	if err != nil {
		return domain.Quote{}, fmt.Errorf("coingecko request: %w", err)
	}
	if resp.IsError() {
		return domain.Quote{}, fmt.Errorf("coingecko responded %d", resp.StatusCode())
	}

	fields, ok := result[coinID]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s missing from response", ErrUnknownSymbol, symbol)
	}
	price, ok := fields[c.currency]
	if !ok {
		return domain.Quote{}, fmt.Errorf("coingecko: no %s price for %s", c.currency, symbol)
	}

	asOf := time.Now().UTC()
	if updated, ok := fields["last_updated_at"]; ok && updated.IsPositive() {
		asOf = time.Unix(updated.IntPart(), 0).UTC()
	}
	return domain.Quote{Symbol: symbol, UnitPrice: price, AsOf: asOf, Source: coinGeckoSource}, nil
}
