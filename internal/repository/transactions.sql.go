package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, owner_id, kind, status, requested_amount, asset, unit_price_micros, fee_micros, settlement_micros, proof_ref, reference_id, metadata, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Kind,
		&i.Status,
		&i.RequestedAmount,
		&i.Asset,
		&i.UnitPriceMicros,
		&i.FeeMicros,
		&i.SettlementMicros,
		&i.ProofRef,
		&i.ReferenceID,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (
    id, owner_id, kind, status, requested_amount, asset,
    unit_price_micros, fee_micros, settlement_micros, proof_ref, reference_id, metadata,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, '{}'::jsonb), NOW(), NOW())
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
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
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, createTransaction,
		arg.ID,
		arg.OwnerID,
		arg.Kind,
		arg.Status,
		arg.RequestedAmount,
		arg.Asset,
		arg.UnitPriceMicros,
		arg.FeeMicros,
		arg.SettlementMicros,
		arg.ProofRef,
		arg.ReferenceID,
		arg.Metadata,
	)
	return scanTransaction(row)
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1
`

func (q *Queries) GetTransaction(ctx context.Context, id pgtype.UUID) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransaction, id))
}

const getTransactionForUpdate = `-- name: GetTransactionForUpdate :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetTransactionForUpdate(ctx context.Context, id pgtype.UUID) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionForUpdate, id))
}

const getTransactionByReference = `-- name: GetTransactionByReference :one
SELECT ` + transactionColumns + ` FROM transactions WHERE owner_id = $1 AND reference_id = $2
`

type GetTransactionByReferenceParams struct {
	OwnerID     pgtype.UUID
	ReferenceID string
}

func (q *Queries) GetTransactionByReference(ctx context.Context, arg GetTransactionByReferenceParams) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionByReference, arg.OwnerID, arg.ReferenceID))
}

const updateTransactionStatus = `-- name: UpdateTransactionStatus :execrows
UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
`

// UpdateTransactionStatusParams carries the expected current status so a
// concurrent writer that slipped past the row lock is detected as zero rows.
type UpdateTransactionStatusParams struct {
	ID         pgtype.UUID
	Status     string
	PrevStatus string
}

func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateTransactionStatus, arg.ID, arg.Status, arg.PrevStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listTransactions = `-- name: ListTransactions :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE ($1::uuid IS NULL OR owner_id = $1)
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR kind = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5
`

type ListTransactionsParams struct {
	OwnerID pgtype.UUID
	Status  pgtype.Text
	Kind    pgtype.Text
	Limit   int32
	Offset  int32
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactions,
		arg.OwnerID,
		arg.Status,
		arg.Kind,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumInFlightByOwner = `-- name: SumInFlightByOwner :many
SELECT owner_id, COALESCE(SUM(settlement_micros), 0)::bigint AS in_flight_micros
FROM transactions
WHERE status = ANY($1::text[])
GROUP BY owner_id
`

type SumInFlightByOwnerRow struct {
	OwnerID        pgtype.UUID
	InFlightMicros int64
}

func (q *Queries) SumInFlightByOwner(ctx context.Context, statuses []string) ([]SumInFlightByOwnerRow, error) {
	rows, err := q.db.Query(ctx, sumInFlightByOwner, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SumInFlightByOwnerRow
	for rows.Next() {
		var i SumInFlightByOwnerRow
		if err := rows.Scan(&i.OwnerID, &i.InFlightMicros); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertStatusHistory = `-- name: InsertStatusHistory :one
INSERT INTO transaction_status_history (transaction_id, status, reason, actor_id, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id, transaction_id, status, reason, actor_id, created_at
`

type InsertStatusHistoryParams struct {
	TransactionID pgtype.UUID
	Status        string
	Reason        pgtype.Text
	ActorID       pgtype.UUID
}

func (q *Queries) InsertStatusHistory(ctx context.Context, arg InsertStatusHistoryParams) (TransactionStatusHistory, error) {
	row := q.db.QueryRow(ctx, insertStatusHistory,
		arg.TransactionID,
		arg.Status,
		arg.Reason,
		arg.ActorID,
	)
	var i TransactionStatusHistory
	err := row.Scan(
		&i.ID,
		&i.TransactionID,
		&i.Status,
		&i.Reason,
		&i.ActorID,
		&i.CreatedAt,
	)
	return i, err
}

const listStatusHistory = `-- name: ListStatusHistory :many
SELECT id, transaction_id, status, reason, actor_id, created_at
FROM transaction_status_history
WHERE transaction_id = $1
ORDER BY id
`

func (q *Queries) ListStatusHistory(ctx context.Context, transactionID pgtype.UUID) ([]TransactionStatusHistory, error) {
	rows, err := q.db.Query(ctx, listStatusHistory, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionStatusHistory
	for rows.Next() {
		var i TransactionStatusHistory
		if err := rows.Scan(
			&i.ID,
			&i.TransactionID,
			&i.Status,
			&i.Reason,
			&i.ActorID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
