package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Violation describes one account whose stored balances disagree with its records.
type Violation struct {
	OwnerID  pgtype.UUID
	Check    string
	Expected int64
	Actual   int64
}

// Run checks that every account's frozen balance equals the settlement held by
// its in-flight records and that no balance is negative. It only reads.
func (s *ReconciliationService) Run(ctx context.Context) ([]Violation, error) {
	queries := s.store.Queries()
	accounts, err := queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	statuses := make([]string, 0, 3)
	for _, st := range domain.InFlightStatuses() {
		statuses = append(statuses, string(st))
	}
	sums, err := queries.SumInFlightByOwner(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("sum in-flight settlement: %w", err)
	}
	inFlight := make(map[pgtype.UUID]int64, len(sums))
	for _, row := range sums {
		inFlight[row.OwnerID] = row.InFlightMicros
	}

	var violations []Violation
	for _, acct := range accounts {
		violations = append(violations, checkAccount(acct, inFlight[acct.OwnerID])...)
	}

	for _, v := range violations {
		observability.IncrementLedgerInvariantViolation(v.Check)
		zap.L().Error("CRITICAL: ledger invariant violated",
			zap.String("owner_id", repository.FromPgUUID(v.OwnerID).String()),
			zap.String("check", v.Check),
			zap.Int64("expected", v.Expected),
			zap.Int64("actual", v.Actual),
		)
	}
	if len(violations) == 0 {
		zap.L().Info("Ledger Balanced", zap.Int("accounts", len(accounts)))
	}
	return violations, nil
}

func checkAccount(acct repository.Account, inFlight int64) []Violation {
	var out []Violation
	if acct.FrozenMicros != inFlight {
		out = append(out, Violation{OwnerID: acct.OwnerID, Check: "frozen_matches_in_flight", Expected: inFlight, Actual: acct.FrozenMicros})
	}
	for check, value := range map[string]int64{
		"available_non_negative":          acct.AvailableMicros,
		"frozen_non_negative":             acct.FrozenMicros,
		"lifetime_deposited_non_negative": acct.LifetimeDepositedMicros,
		"lifetime_withdrawn_non_negative": acct.LifetimeWithdrawnMicros,
	} {
		if value < 0 {
			out = append(out, Violation{OwnerID: acct.OwnerID, Check: check, Expected: 0, Actual: value})
		}
	}
	return out
}
