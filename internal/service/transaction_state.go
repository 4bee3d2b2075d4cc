package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// appliedTransition is what a committed status change hands to post-commit side effects.
type appliedTransition struct {
	record *models.Transaction
	plan   domain.TransitionPlan
	owner  repository.User
}

// transitionTransaction moves a record to target and applies the matching
// balance effect. The record row is locked before the account row; every
// caller must keep that order.
func transitionTransaction(ctx context.Context, qtx repository.Querier, audit *AuditService, transactionID uuid.UUID, target domain.Status, actorID *uuid.UUID, reason string) (appliedTransition, error) {
	row, err := qtx.GetTransactionForUpdate(ctx, repository.ToPgUUID(transactionID))
	if err != nil {
		return appliedTransition{}, notFound(err, domain.ErrRecordNotFound, "lock transaction")
	}
	current, err := toTransactionModel(row)
	if err != nil {
		return appliedTransition{}, err
	}

	plan, err := domain.PlanTransition(current.Kind, current.Status, target, current.SettlementMicros)
	if err != nil {
		return appliedTransition{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}

	acct, err := qtx.GetAccountForUpdate(ctx, row.OwnerID)
	if err != nil {
		return appliedTransition{}, notFound(err, domain.ErrAccountNotFound, "lock account")
	}
	if !plan.Effect.IsZero() {
		next, err := toAccountModel(acct).Balances().Apply(plan.Effect)
		if err != nil {
			return appliedTransition{}, err
		}
		if err := writeBalances(ctx, qtx, row.OwnerID, next); err != nil {
			return appliedTransition{}, err
		}
	}

	rows, err := qtx.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
		ID:         row.ID,
		Status:     string(plan.To),
		PrevStatus: string(plan.From),
	})
	if err != nil {
		return appliedTransition{}, fmt.Errorf("update transaction state: %w", err)
	}
	if err := requireExactlyOne(rows, "update transaction state"); err != nil {
		return appliedTransition{}, err
	}

	if _, err := qtx.InsertStatusHistory(ctx, repository.InsertStatusHistoryParams{
		TransactionID: row.ID,
		Status:        string(plan.To),
		Reason:        repository.Text(reason),
		ActorID:       repository.OptionalUUID(actorID),
	}); err != nil {
		return appliedTransition{}, fmt.Errorf("insert status history: %w", err)
	}

	if err := audit.Write(ctx, qtx, AuditEntry{
		Entity:   domain.AuditEntityTransaction,
		EntityID: transactionID,
		ActorID:  actorID,
		Action:   "status_changed",
		From:     string(plan.From),
		To:       string(plan.To),
		Details: map[string]any{
			"reason":            reason,
			"kind":              current.Kind,
			"settlement_micros": current.SettlementMicros,
			"effect":            plan.Effect,
		},
	}); err != nil {
		return appliedTransition{}, err
	}

	updated, err := qtx.GetTransaction(ctx, row.ID)
	if err != nil {
		return appliedTransition{}, fmt.Errorf("reload transaction: %w", err)
	}
	record, err := toTransactionModel(updated)
	if err != nil {
		return appliedTransition{}, err
	}
	owner, err := qtx.GetUser(ctx, row.OwnerID)
	if err != nil {
		return appliedTransition{}, fmt.Errorf("load owner: %w", err)
	}

	return appliedTransition{record: record, plan: plan, owner: owner}, nil
}

func writeBalances(ctx context.Context, qtx repository.Querier, ownerID pgtype.UUID, b domain.Balances) error {
	rows, err := qtx.UpdateAccountBalances(ctx, repository.UpdateAccountBalancesParams{
		OwnerID:                 ownerID,
		AvailableMicros:         b.Available,
		FrozenMicros:            b.Frozen,
		LifetimeDepositedMicros: b.LifetimeDeposited,
		LifetimeWithdrawnMicros: b.LifetimeWithdrawn,
	})
	if err != nil {
		return fmt.Errorf("update account balances: %w", err)
	}
	return requireExactlyOne(rows, "update account balances")
}
