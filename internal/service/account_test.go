package service

import (
	"context"
	"testing"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserOpensZeroBalanceAccount(t *testing.T) {
	store := memstore.New()
	svc := NewAccountService(store)
	ctx := context.Background()

	user, acct, err := svc.CreateUser(ctx, CreateUserRequest{FirstName: "Chidi", LastName: "Eze", Email: " Chidi@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "chidi@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, user.ID, acct.OwnerID)
	assert.Equal(t, domain.SettlementCurrency, acct.Currency)
	assert.Equal(t, domain.Balances{}, acct.Balances())

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	entries := store.AuditLog()
	require.Len(t, entries, 1)
	assert.Equal(t, "opened", entries[0].Action)
	assert.JSONEq(t, `{"role":"user","currency":"NGN"}`, string(entries[0].Metadata))
}

func TestCreateUserRejectsDuplicatesAndBadInput(t *testing.T) {
	svc := NewAccountService(memstore.New())
	ctx := context.Background()

	_, _, err := svc.CreateUser(ctx, CreateUserRequest{FirstName: "A", Email: "a@example.com"})
	require.NoError(t, err)

	_, _, err = svc.CreateUser(ctx, CreateUserRequest{FirstName: "B", Email: "A@example.com"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = svc.CreateUser(ctx, CreateUserRequest{FirstName: "C", Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = svc.CreateUser(ctx, CreateUserRequest{Email: "d@example.com"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = svc.CreateUser(ctx, CreateUserRequest{FirstName: "E", Email: "e@example.com", Role: "root"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.GetUser(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}
