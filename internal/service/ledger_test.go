package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdrawSettlesAndCountsLifetime(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.fund(t, user.ID, "1000")

	rec, err := tl.ledger.CreateTransaction(ctx, withdrawRequest(user.ID, "1000"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.Equal(t, domain.Balances{Available: 0, Frozen: ngn(1000), LifetimeDeposited: ngn(1000)}, tl.balances(t, user.ID))

	rec, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, rec.Status)
	assert.Equal(t, domain.Balances{LifetimeDeposited: ngn(1000), LifetimeWithdrawn: ngn(1000)}, tl.balances(t, user.ID))
}

func TestCancelledDepositReleasesReservation(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		OwnerID: user.ID,
		Kind:    "deposit",
		Amount:  decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Balances{Frozen: ngn(500)}, tl.balances(t, user.ID))
	assert.Equal(t, "bank", rec.Metadata[MetaMethod])

	_, err = tl.admin.Reject(ctx, rec.ID, tl.operator, "no funds received")
	require.NoError(t, err)
	assert.Equal(t, domain.Balances{}, tl.balances(t, user.ID))
}

func TestBuyPricesFromOracleWithMarkup(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	buy := CreateTransactionRequest{
		OwnerID: user.ID,
		Kind:    "buy",
		Asset:   "btc",
		Amount:  decimal.RequireFromString("0.01"),
	}
	_, err := tl.ledger.CreateTransaction(ctx, buy)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	tl.fund(t, user.ID, "157500")
	rec, err := tl.ledger.CreateTransaction(ctx, buy)
	require.NoError(t, err)
	assert.Equal(t, "BTC", rec.Asset)
	assert.Equal(t, int64(157_500_000_000), rec.SettlementMicros)
	assert.Equal(t, int64(15_750_000_000_000), rec.UnitPriceMicros)
	assert.Equal(t, domain.Balances{Frozen: ngn(157_500), LifetimeDeposited: ngn(157_500)}, tl.balances(t, user.ID))

	// Later price moves do not change what was frozen.
	tl.oracle.prices["BTC"] = decimal.NewFromInt(30_000_000)
	rec, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)
	assert.Equal(t, int64(157_500_000_000), rec.SettlementMicros)
	assert.Equal(t, domain.Balances{LifetimeDeposited: ngn(157_500)}, tl.balances(t, user.ID))
}

func TestSellFailsWithoutPrice(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.oracle.err = errors.New("connection refused")

	_, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		OwnerID: user.ID,
		Kind:    "sell",
		Asset:   "BTC",
		Amount:  decimal.RequireFromString("0.5"),
	})
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
	assert.Equal(t, domain.Balances{}, tl.balances(t, user.ID))

	list, err := tl.ledger.ListTransactions(ctx, models.TransactionFilter{OwnerID: &user.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSellRejectsStaleQuote(t *testing.T) {
	tl := newTestLedger(t)
	user := tl.newUser(t)
	tl.oracle.asOf = time.Now().Add(-time.Hour)

	_, err := tl.ledger.CreateTransaction(context.Background(), CreateTransactionRequest{
		OwnerID: user.ID,
		Kind:    "sell",
		Asset:   "ETH",
		Amount:  decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestSellCreditsDiscountedSettlement(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		OwnerID: user.ID,
		Kind:    "sell",
		Asset:   "ETH",
		Amount:  decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, ngn(9_500_000), rec.SettlementMicros)
	assert.Equal(t, "wallet", rec.Metadata[MetaPayoutDestination])

	_, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Balances{Available: ngn(9_500_000)}, tl.balances(t, user.ID))
}

func TestTransitionToSameStatusIsNoOp(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.fund(t, user.ID, "100")

	rec, err := tl.ledger.CreateTransaction(ctx, withdrawRequest(user.ID, "40"))
	require.NoError(t, err)
	before := tl.balances(t, user.ID)

	_, err = tl.ledger.Transition(ctx, TransitionRequest{TransactionID: rec.ID, Target: "pending"})
	require.ErrorIs(t, err, domain.ErrNoOpTransition)
	assert.Equal(t, before, tl.balances(t, user.ID))

	// In-flight to in-flight moves apply no further effect.
	rec, err = tl.ledger.Transition(ctx, TransitionRequest{TransactionID: rec.ID, Target: "processing"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, rec.Status)
	assert.Equal(t, before, tl.balances(t, user.ID))
}

func TestTerminalRecordsRejectEveryTransition(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.fund(t, user.ID, "100")

	rec, err := tl.ledger.CreateTransaction(ctx, withdrawRequest(user.ID, "40"))
	require.NoError(t, err)
	_, err = tl.admin.Reject(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)
	settled := tl.balances(t, user.ID)
	assert.Equal(t, ngn(100), settled.Available)

	for _, target := range []string{"pending", "processing", "successful", "completed", "failed", "cancelled"} {
		_, err := tl.ledger.Transition(ctx, TransitionRequest{TransactionID: rec.ID, Target: target})
		require.ErrorIs(t, err, domain.ErrTerminalState, target)
	}
	assert.Equal(t, settled, tl.balances(t, user.ID))
}

func TestTransitionErrors(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	_, err := tl.ledger.Transition(ctx, TransitionRequest{TransactionID: uuid.New(), Target: "successful"})
	require.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = tl.ledger.Transition(ctx, TransitionRequest{TransactionID: uuid.New(), Target: "approved"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateTransactionValidation(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	cases := []struct {
		name string
		req  CreateTransactionRequest
		want error
	}{
		{"unknown kind", CreateTransactionRequest{OwnerID: user.ID, Kind: "loan", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"swap", CreateTransactionRequest{OwnerID: user.ID, Kind: "swap", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"zero amount", CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.Zero}, domain.ErrInvalidInput},
		{"negative amount", CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(-5)}, domain.ErrInvalidInput},
		{"buy without asset", CreateTransactionRequest{OwnerID: user.ID, Kind: "buy", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"withdraw without bank", CreateTransactionRequest{OwnerID: user.ID, Kind: "withdraw", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"transfer without recipient", CreateTransactionRequest{OwnerID: user.ID, Kind: "transfer", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"credit by owner", CreateTransactionRequest{OwnerID: user.ID, Kind: "credit", Amount: decimal.NewFromInt(1), Metadata: map[string]string{MetaReason: "x"}}, domain.ErrInvalidInput},
		{"bad payout destination", CreateTransactionRequest{OwnerID: user.ID, Kind: "sell", Asset: "BTC", Amount: decimal.NewFromInt(1), Metadata: map[string]string{MetaPayoutDestination: "cash"}}, domain.ErrInvalidInput},
		{"missing account", CreateTransactionRequest{OwnerID: uuid.New(), Kind: "deposit", Amount: decimal.NewFromInt(1)}, domain.ErrAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tl.ledger.CreateTransaction(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, domain.Balances{}, tl.balances(t, user.ID))
}

func TestInsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.fund(t, user.ID, "99")

	_, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		OwnerID:  user.ID,
		Kind:     "transfer",
		Amount:   decimal.NewFromInt(100),
		Metadata: map[string]string{MetaRecipientAddress: "0xabc"},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, domain.Balances{Available: ngn(99), LifetimeDeposited: ngn(99)}, tl.balances(t, user.ID))
}

func TestOversizedWithdrawIsRejected(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.fund(t, user.ID, "1")

	_, err := tl.ledger.CreateTransaction(ctx, withdrawRequest(user.ID, "18446744073710.551616"))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.Balances{Available: ngn(1), LifetimeDeposited: ngn(1)}, tl.balances(t, user.ID))

	withdraw := domain.KindWithdraw
	records, err := tl.ledger.ListTransactions(ctx, models.TransactionFilter{OwnerID: &user.ID, Kind: &withdraw})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListTransactionsClampsOffset(t *testing.T) {
	tl := newTestLedger(t)
	user := tl.newUser(t)
	tl.fund(t, user.ID, "10")

	records, err := tl.ledger.ListTransactions(context.Background(), models.TransactionFilter{OwnerID: &user.ID, Offset: math.MaxInt32 + 1})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConcurrentDebitsAllowOnlyOneSuccess(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.fund(t, user.ID, "500")

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortfall int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.ledger.CreateTransaction(ctx, withdrawRequest(user.ID, "500"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientFunds):
				shortfall++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, shortfall)
	b := tl.balances(t, user.ID)
	assert.Zero(t, b.Available)
	assert.Equal(t, ngn(500), b.Frozen)
}

func TestConcurrentApprovalsSettleOnce(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(250)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.admin.Approve(ctx, rec.ID, tl.operator, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, domain.ErrTerminalState)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, domain.Balances{Available: ngn(250), LifetimeDeposited: ngn(250)}, tl.balances(t, user.ID))
}

func TestReferenceReplayReturnsOriginalRecord(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	req := CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(10), ReferenceID: "bank-ref-1"}
	first, err := tl.ledger.CreateTransaction(ctx, req)
	require.NoError(t, err)
	second, err := tl.ledger.CreateTransaction(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, ngn(10), tl.balances(t, user.ID).Frozen)

	req.Amount = decimal.NewFromInt(11)
	_, err = tl.ledger.CreateTransaction(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetTransactionIncludesHistory(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = tl.ledger.Transition(ctx, TransitionRequest{TransactionID: rec.ID, Target: "processing", Reason: "bank check"})
	require.NoError(t, err)
	_, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)

	got, err := tl.ledger.GetTransaction(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 3)
	assert.Equal(t, domain.StatusPending, got.History[0].Status)
	assert.Equal(t, domain.StatusProcessing, got.History[1].Status)
	assert.Equal(t, "bank check", got.History[1].Reason)
	assert.Equal(t, domain.StatusSuccessful, got.History[2].Status)
	require.NotNil(t, got.History[2].ActorID)
	assert.Equal(t, tl.operator, *got.History[2].ActorID)

	_, err = tl.ledger.GetTransaction(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestNotificationsAndEvents(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)

	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)

	rejected, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = tl.admin.Reject(ctx, rejected.ID, tl.operator, "")
	require.NoError(t, err)
	tl.dispatcher.Wait()

	assert.ElementsMatch(t, []domain.NotificationKind{
		domain.NotifySubmitted, domain.NotifyApproved, domain.NotifySubmitted, domain.NotifyRejected,
	}, tl.notifier.kinds(user.Email))
	assert.Equal(t, []domain.NotificationKind{domain.NotifyNewSubmission, domain.NotifyNewSubmission}, tl.notifier.kinds(operatorEmail))
	assert.Len(t, tl.publisher.events, 4)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	user := tl.newUser(t)
	tl.notifier.err = errors.New("smtp down")

	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	rec, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)
	tl.dispatcher.Wait()

	assert.Equal(t, domain.StatusSuccessful, rec.Status)
	assert.Equal(t, ngn(10), tl.balances(t, user.ID).Available)
}

func TestPreviewQuote(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	p, err := tl.ledger.PreviewQuote(ctx, "buy", "BTC", decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.True(t, p.Settlement.Equal(decimal.NewFromInt(157_500)), p.Settlement.String())
	assert.Equal(t, 1, tl.oracle.calls)

	_, err = tl.ledger.PreviewQuote(ctx, "buy", "DOGE", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

type memProofs struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	seq     int
}

func (p *memProofs) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	ref := strings.Repeat("p", p.seq) + "-" + name
	p.files[ref] = data
	return ref, nil
}

func (p *memProofs) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.files[ref]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *memProofs) Delete(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, ref)
	p.deleted = append(p.deleted, ref)
	return nil
}

func TestSubmitWithProof(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	proofs := &memProofs{files: make(map[string][]byte)}
	tl.ledger.WithProofStore(proofs)
	user := tl.newUser(t)

	rec, err := tl.ledger.SubmitWithProof(ctx, CreateTransactionRequest{OwnerID: user.ID, Kind: "deposit", Amount: decimal.NewFromInt(75)}, "receipt.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, rec.Status)
	require.NotEmpty(t, rec.ProofRef)

	rc, err := tl.ledger.OpenProof(ctx, rec.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(body))

	// A record that cannot be created leaves no artifact behind.
	_, err = tl.ledger.SubmitWithProof(ctx, withdrawRequest(user.ID, "1000"), "receipt.pdf", strings.NewReader("pdf"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Len(t, proofs.files, 1)

	_, err = tl.admin.Reject(ctx, rec.ID, tl.operator, "blurry")
	require.NoError(t, err)
	assert.Empty(t, proofs.files)
	assert.Contains(t, proofs.deleted, rec.ProofRef)
}
