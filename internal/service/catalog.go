package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentQuotes = 4

// PriceBoard lists current prices for every listed asset. Symbols the oracle
// could not price are named in Unavailable rather than failing the board.
type PriceBoard struct {
	Prices      []domain.ListedPrice `json:"prices"`
	Unavailable []string             `json:"unavailable,omitempty"`
}

// WithDepositInstructions publishes the bank account shown to depositors.
func (s *LedgerService) WithDepositInstructions(info domain.DepositInstructions) *LedgerService {
	s.depositInfo = info
	return s
}

// WithListedSymbols sets the assets ListPrices reports.
func (s *LedgerService) WithListedSymbols(symbols []string) *LedgerService {
	s.listedSymbols = symbols
	return s
}

// DepositInstructions returns where to pay a deposit in currency. Only the
// settlement currency accepts bank deposits.
func (s *LedgerService) DepositInstructions(currency string) (domain.DepositInstructions, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return domain.DepositInstructions{}, fmt.Errorf("%w: currency is required", domain.ErrInvalidInput)
	}
	if currency != domain.SettlementCurrency || !s.depositInfo.Configured() {
		return domain.DepositInstructions{}, fmt.Errorf("%w: %s", domain.ErrDepositInfoNotFound, currency)
	}
	info := s.depositInfo
	info.Currency = currency
	info.FeeThreshold = s.fees.DepositFeeThreshold
	info.FeeRateBelow = s.fees.DepositFeeRateBelow
	info.FeeRateAbove = s.fees.DepositFeeRateAbove
	return info, nil
}

// ListPrices quotes every listed symbol concurrently, in listing order.
func (s *LedgerService) ListPrices(ctx context.Context) PriceBoard {
	quotes := make([]*domain.Quote, len(s.listedSymbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i, symbol := range s.listedSymbols {
		i, symbol := i, symbol
		g.Go(func() error {
			q, err := s.quote(gctx, symbol)
			if err == nil {
				quotes[i] = &q
			}
			return nil
		})
	}
	_ = g.Wait()

	board := PriceBoard{Prices: make([]domain.ListedPrice, 0, len(quotes))}
	for i, q := range quotes {
		if q == nil {
			board.Unavailable = append(board.Unavailable, strings.ToUpper(s.listedSymbols[i]))
			continue
		}
		board.Prices = append(board.Prices, s.fees.List(*q))
	}
	return board
}
