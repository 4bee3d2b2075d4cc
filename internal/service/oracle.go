package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"go.uber.org/zap"
)

// PriceOracle quotes a unit price in settlement currency for an asset symbol.
type PriceOracle interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

// quote asks the oracle under a deadline and rejects stale or non-positive prices.
// Every failure is reported as domain.ErrPriceUnavailable.
func (s *LedgerService) quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s.oracle == nil {
		return domain.Quote{}, fmt.Errorf("%w: no oracle configured", domain.ErrPriceUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	q, err := s.oracle.Quote(ctx, symbol)
	if err != nil {
		observability.IncrementOracleRequest(symbol, "error")
		zap.L().Warn("price oracle request failed", zap.String("symbol", symbol), zap.Error(err))
		return domain.Quote{}, fmt.Errorf("%w: %s: %v", domain.ErrPriceUnavailable, symbol, err)
	}
	if !q.UnitPrice.IsPositive() {
		observability.IncrementOracleRequest(symbol, "invalid")
		return domain.Quote{}, fmt.Errorf("%w: %s: non-positive price", domain.ErrPriceUnavailable, symbol)
	}
	if s.maxQuoteAge > 0 && !q.AsOf.IsZero() && s.now().Sub(q.AsOf) > s.maxQuoteAge {
		observability.IncrementOracleRequest(symbol, "stale")
		return domain.Quote{}, fmt.Errorf("%w: %s: quote older than %s", domain.ErrPriceUnavailable, symbol, s.maxQuoteAge)
	}
	observability.IncrementOracleRequest(symbol, "success")
	return q, nil
}

const defaultOracleTimeout = 5 * time.Second
