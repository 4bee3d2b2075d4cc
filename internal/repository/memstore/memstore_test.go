package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOwner(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	err := s.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := q.CreateUser(ctx, repository.CreateUserParams{ID: repository.ToPgUUID(id), FirstName: "Ada", Email: id.String() + "@example.com", Role: "user"}); err != nil {
			return err
		}
		_, err := q.CreateAccount(ctx, repository.CreateAccountParams{OwnerID: repository.ToPgUUID(id), Currency: "NGN"})
		return err
	})
	require.NoError(t, err)
	return id
}

func newTxParams(owner uuid.UUID, ref string) repository.CreateTransactionParams {
	return repository.CreateTransactionParams{
		ID:               repository.ToPgUUID(uuid.New()),
		OwnerID:          repository.ToPgUUID(owner),
		Kind:             "deposit",
		Status:           "pending",
		RequestedAmount:  decimal.NewFromInt(10),
		Asset:            "NGN",
		SettlementMicros: 10_000_000,
		ReferenceID:      repository.Text(ref),
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := New()
	owner := seedOwner(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	params := newTxParams(owner, "ref-1")
	err := s.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := q.CreateTransaction(ctx, params); err != nil {
			return err
		}
		if _, err := q.UpdateAccountBalances(ctx, repository.UpdateAccountBalancesParams{OwnerID: repository.ToPgUUID(owner), FrozenMicros: 10_000_000}); err != nil {
			return err
		}
		if _, err := q.InsertStatusHistory(ctx, repository.InsertStatusHistoryParams{TransactionID: params.ID, Status: "pending"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Queries().GetTransaction(ctx, params.ID)
	require.ErrorIs(t, err, pgx.ErrNoRows)

	acct, err := s.Queries().GetAccount(ctx, repository.ToPgUUID(owner))
	require.NoError(t, err)
	assert.Zero(t, acct.FrozenMicros)

	history, err := s.Queries().ListStatusHistory(ctx, params.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// The reference is free again after rollback.
	_, err = s.Queries().CreateTransaction(ctx, params)
	require.NoError(t, err)
}

func TestCreateTransactionEnforcesConstraints(t *testing.T) {
	s := New()
	owner := seedOwner(t, s)
	ctx := context.Background()
	q := s.Queries()

	_, err := q.CreateTransaction(ctx, newTxParams(owner, "dup"))
	require.NoError(t, err)

	_, err = q.CreateTransaction(ctx, newTxParams(owner, "dup"))
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)

	_, err = q.CreateTransaction(ctx, newTxParams(uuid.New(), ""))
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23503", pgErr.Code)
}

func TestUpdateAccountBalancesRejectsNegative(t *testing.T) {
	s := New()
	owner := seedOwner(t, s)

	_, err := s.Queries().UpdateAccountBalances(context.Background(), repository.UpdateAccountBalancesParams{
		OwnerID:         repository.ToPgUUID(owner),
		AvailableMicros: -1,
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23514", pgErr.Code)
}

func TestUpdateTransactionStatusComparesPreviousStatus(t *testing.T) {
	s := New()
	owner := seedOwner(t, s)
	ctx := context.Background()
	q := s.Queries()

	created, err := q.CreateTransaction(ctx, newTxParams(owner, ""))
	require.NoError(t, err)

	rows, err := q.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{ID: created.ID, Status: "successful", PrevStatus: "processing"})
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = q.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{ID: created.ID, Status: "successful", PrevStatus: "pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestListTransactionsFiltersAndPages(t *testing.T) {
	s := New()
	alice := seedOwner(t, s)
	bob := seedOwner(t, s)
	ctx := context.Background()
	q := s.Queries()

	var aliceIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		row, err := q.CreateTransaction(ctx, newTxParams(alice, ""))
		require.NoError(t, err)
		aliceIDs = append(aliceIDs, repository.FromPgUUID(row.ID))
	}
	_, err := q.CreateTransaction(ctx, newTxParams(bob, ""))
	require.NoError(t, err)

	rows, err := q.ListTransactions(ctx, repository.ListTransactionsParams{OwnerID: repository.ToPgUUID(alice), Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, aliceIDs[2], repository.FromPgUUID(rows[0].ID))
	assert.Equal(t, aliceIDs[1], repository.FromPgUUID(rows[1].ID))

	rows, err = q.ListTransactions(ctx, repository.ListTransactionsParams{OwnerID: repository.ToPgUUID(alice), Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, aliceIDs[0], repository.FromPgUUID(rows[0].ID))

	rows, err = q.ListTransactions(ctx, repository.ListTransactionsParams{Kind: repository.Text("deposit"), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	sums, err := q.SumInFlightByOwner(ctx, []string{"pending"})
	require.NoError(t, err)
	assert.Len(t, sums, 2)
}
