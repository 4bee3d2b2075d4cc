package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/db"
	"github.com/ayo6706/delexpay-ledger/internal/testutil/dblock"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	dblock.Lock(t)

	ctx := context.Background()
	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE TABLE idempotency_keys")
	require.NoError(t, err)
	return NewStore(nil, pool, time.Hour)
}

func TestReserveFinalizeLookup(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	key := "user:" + uuid.NewString() + ":k1"

	_, err := store.Lookup(ctx, key, "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Reserve(ctx, key, "h1", "POST", "/v1/transactions")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, key, "h1", "POST", "/v1/transactions")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same key must lose")

	_, err = store.Lookup(ctx, key, "h1")
	assert.ErrorIs(t, err, ErrInProgress)

	rec, err := store.Finalize(ctx, key, "h1", 201, []byte(`{"id":"x"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)

	got, err := store.Lookup(ctx, key, "h1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x"}`, string(got.Body))
	assert.Equal(t, SourcePostgres, got.ServedBy)

	_, err = store.Lookup(ctx, key, "other")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestReleaseAllowsRetry(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	key := "user:" + uuid.NewString() + ":k2"

	ok, err := store.Reserve(ctx, key, "h1", "POST", "/v1/transactions")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, key))
	_, err = store.Lookup(ctx, key, "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err = store.Reserve(ctx, key, "h1", "POST", "/v1/transactions")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForCompletion(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	key := "user:" + uuid.NewString() + ":k3"

	ok, err := store.Reserve(ctx, key, "h1", "POST", "/v1/transactions")
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = store.Finalize(context.Background(), key, "h1", 200, []byte("{}"), "application/json")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rec, err := store.WaitForCompletion(waitCtx, key, "h1")
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Status)
}

func TestWaitForCompletionHonorsContext(t *testing.T) {
	store := setupStore(t)
	key := "user:" + uuid.NewString() + ":k4"

	ok, err := store.Reserve(context.Background(), key, "h1", "POST", "/v1/transactions")
	require.NoError(t, err)
	require.True(t, ok)

	waitCtx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = store.WaitForCompletion(waitCtx, key, "h1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyScopesByCaller(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, Key(a, "k"), Key(b, "k"))
	assert.Equal(t, "anon:k", Key(uuid.Nil, "k"))
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("POST", "/v1/transactions", []byte(`{"amount":"1"}`))
	assert.Len(t, base, 64)
	assert.Equal(t, base, Fingerprint("POST", "/v1/transactions", []byte(`{"amount":"1"}`)))
	assert.NotEqual(t, base, Fingerprint("POST", "/v1/transactions", []byte(`{"amount":"2"}`)))
	assert.NotEqual(t, base, Fingerprint("POST", "/v1/transactions/submit", []byte(`{"amount":"1"}`)))
}
