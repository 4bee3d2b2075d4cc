package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the ledger query surface shared by the Postgres and in-memory stores.
// Missing rows are reported as pgx.ErrNoRows by every implementation.
type Querier interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUser(ctx context.Context, id pgtype.UUID) (User, error)

	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	GetAccount(ctx context.Context, ownerID pgtype.UUID) (Account, error)
	GetAccountForUpdate(ctx context.Context, ownerID pgtype.UUID) (Account, error)
	UpdateAccountBalances(ctx context.Context, arg UpdateAccountBalancesParams) (int64, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error)
	GetTransaction(ctx context.Context, id pgtype.UUID) (Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id pgtype.UUID) (Transaction, error)
	GetTransactionByReference(ctx context.Context, arg GetTransactionByReferenceParams) (Transaction, error)
	UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error)
	ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error)
	SumInFlightByOwner(ctx context.Context, statuses []string) ([]SumInFlightByOwnerRow, error)

	InsertStatusHistory(ctx context.Context, arg InsertStatusHistoryParams) (TransactionStatusHistory, error)
	ListStatusHistory(ctx context.Context, transactionID pgtype.UUID) ([]TransactionStatusHistory, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
