package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        pgtype.UUID
	FirstName string
	LastName  string
	Email     string
	Role      string
	CreatedAt pgtype.Timestamptz
}

type Account struct {
	OwnerID                 pgtype.UUID
	Currency                string
	AvailableMicros         int64
	FrozenMicros            int64
	LifetimeDepositedMicros int64
	LifetimeWithdrawnMicros int64
	CreatedAt               pgtype.Timestamptz
	UpdatedAt               pgtype.Timestamptz
}

type Transaction struct {
	ID               pgtype.UUID
	OwnerID          pgtype.UUID
	Kind             string
	Status           string
	RequestedAmount  decimal.Decimal
	Asset            string
	UnitPriceMicros  int64
	FeeMicros        int64
	SettlementMicros int64
	ProofRef         pgtype.Text
	ReferenceID      pgtype.Text
	Metadata         []byte
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

type TransactionStatusHistory struct {
	ID            int64
	TransactionID pgtype.UUID
	Status        string
	Reason        pgtype.Text
	ActorID       pgtype.UUID
	CreatedAt     pgtype.Timestamptz
}

type AuditLog struct {
	ID         int64
	EntityType string
	EntityID   pgtype.UUID
	ActorID    pgtype.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}
