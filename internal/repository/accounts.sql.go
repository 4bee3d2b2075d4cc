package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const accountColumns = `owner_id, currency, available_micros, frozen_micros, lifetime_deposited_micros, lifetime_withdrawn_micros, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var i Account
	err := row.Scan(
		&i.OwnerID,
		&i.Currency,
		&i.AvailableMicros,
		&i.FrozenMicros,
		&i.LifetimeDepositedMicros,
		&i.LifetimeWithdrawnMicros,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (owner_id, currency, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
RETURNING ` + accountColumns

type CreateAccountParams struct {
	OwnerID  pgtype.UUID
	Currency string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, createAccount, arg.OwnerID, arg.Currency))
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1
`

func (q *Queries) GetAccount(ctx context.Context, ownerID pgtype.UUID) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccount, ownerID))
}

const getAccountForUpdate = `-- name: GetAccountForUpdate :one
SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 FOR UPDATE
`

func (q *Queries) GetAccountForUpdate(ctx context.Context, ownerID pgtype.UUID) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountForUpdate, ownerID))
}

const updateAccountBalances = `-- name: UpdateAccountBalances :execrows
UPDATE accounts
SET available_micros = $2,
    frozen_micros = $3,
    lifetime_deposited_micros = $4,
    lifetime_withdrawn_micros = $5,
    updated_at = NOW()
WHERE owner_id = $1
`

type UpdateAccountBalancesParams struct {
	OwnerID                 pgtype.UUID
	AvailableMicros         int64
	FrozenMicros            int64
	LifetimeDepositedMicros int64
	LifetimeWithdrawnMicros int64
}

func (q *Queries) UpdateAccountBalances(ctx context.Context, arg UpdateAccountBalancesParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateAccountBalances,
		arg.OwnerID,
		arg.AvailableMicros,
		arg.FrozenMicros,
		arg.LifetimeDepositedMicros,
		arg.LifetimeWithdrawnMicros,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listAccounts = `-- name: ListAccounts :many
SELECT ` + accountColumns + ` FROM accounts ORDER BY owner_id
`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.Query(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		i, err := scanAccount(rows)
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
