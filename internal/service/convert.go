package service

import (
	"encoding/json"
	"fmt"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/repository"
)

func toUserModel(row repository.User) *models.User {
	return &models.User{
		ID:        repository.FromPgUUID(row.ID),
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Role:      row.Role,
		CreatedAt: row.CreatedAt.Time,
	}
}

func toAccountModel(row repository.Account) *models.Account {
	return &models.Account{
		OwnerID:                 repository.FromPgUUID(row.OwnerID),
		Currency:                row.Currency,
		AvailableMicros:         row.AvailableMicros,
		FrozenMicros:            row.FrozenMicros,
		LifetimeDepositedMicros: row.LifetimeDepositedMicros,
		LifetimeWithdrawnMicros: row.LifetimeWithdrawnMicros,
		CreatedAt:               row.CreatedAt.Time,
		UpdatedAt:               row.UpdatedAt.Time,
	}
}

func toTransactionModel(row repository.Transaction) (*models.Transaction, error) {
	kind, err := domain.ParseKind(row.Kind)
	if err != nil {
		return nil, fmt.Errorf("stored transaction %s: %w", repository.FromPgUUID(row.ID), err)
	}
	status, err := domain.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("stored transaction %s: %w", repository.FromPgUUID(row.ID), err)
	}

	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}

	return &models.Transaction{
		ID:               repository.FromPgUUID(row.ID),
		OwnerID:          repository.FromPgUUID(row.OwnerID),
		Kind:             kind,
		Status:           status,
		RequestedAmount:  row.RequestedAmount,
		Asset:            row.Asset,
		UnitPriceMicros:  row.UnitPriceMicros,
		FeeMicros:        row.FeeMicros,
		SettlementMicros: row.SettlementMicros,
		ProofRef:         row.ProofRef.String,
		ReferenceID:      row.ReferenceID.String,
		Metadata:         metadata,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}, nil
}

func toStatusChanges(rows []repository.TransactionStatusHistory) []models.StatusChange {
	out := make([]models.StatusChange, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.StatusChange{
			Status:    domain.Status(row.Status),
			Reason:    row.Reason.String,
			ActorID:   repository.OptionalUUIDPtr(row.ActorID),
			CreatedAt: row.CreatedAt.Time,
		})
	}
	return out
}
