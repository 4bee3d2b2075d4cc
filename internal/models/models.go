package models

import (
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is the ledger account owned by exactly one user.
type Account struct {
	OwnerID                 uuid.UUID `json:"owner_id"`
	Currency                string    `json:"currency"`
	AvailableMicros         int64     `json:"available_micros"`
	FrozenMicros            int64     `json:"frozen_micros"`
	LifetimeDepositedMicros int64     `json:"lifetime_deposited_micros"`
	LifetimeWithdrawnMicros int64     `json:"lifetime_withdrawn_micros"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (a Account) Balances() domain.Balances {
	return domain.Balances{
		Available:         a.AvailableMicros,
		Frozen:            a.FrozenMicros,
		LifetimeDeposited: a.LifetimeDepositedMicros,
		LifetimeWithdrawn: a.LifetimeWithdrawnMicros,
	}
}

type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	OwnerID          uuid.UUID         `json:"owner_id"`
	Kind             domain.Kind       `json:"kind"`
	Status           domain.Status     `json:"status"`
	RequestedAmount  decimal.Decimal   `json:"requested_amount"`
	Asset            string            `json:"asset"`
	UnitPriceMicros  int64             `json:"unit_price_micros"`
	FeeMicros        int64             `json:"fee_micros"`
	SettlementMicros int64             `json:"settlement_micros"`
	ProofRef         string            `json:"proof_ref,omitempty"`
	ReferenceID      string            `json:"reference_id,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	History          []StatusChange    `json:"history,omitempty"`
}

// StatusChange is one row of a record's append-only status history.
type StatusChange struct {
	Status    domain.Status `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	ActorID   *uuid.UUID    `json:"actor_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// TransactionFilter narrows admin and owner listings. Nil fields match everything.
type TransactionFilter struct {
	OwnerID *uuid.UUID
	Status  *domain.Status
	Kind    *domain.Kind
	Limit   int
	Offset  int
}
