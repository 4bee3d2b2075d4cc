package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	asOf   time.Time
	err    error
	calls  int
}

func newFakeOracle(prices map[string]string) *fakeOracle {
	o := &fakeOracle{prices: make(map[string]decimal.Decimal), asOf: time.Now()}
	for sym, p := range prices {
		o.prices[sym] = decimal.RequireFromString(p)
	}
	return o
}

func (o *fakeOracle) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return domain.Quote{}, o.err
	}
	price, ok := o.prices[symbol]
	if !ok {
		return domain.Quote{}, errors.New("unknown symbol")
	}
	return domain.Quote{Symbol: symbol, UnitPrice: price, AsOf: o.asOf, Source: "fake"}, nil
}

type sentMessage struct {
	address string
	kind    domain.NotificationKind
	data    map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, address string, kind domain.NotificationKind, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{address: address, kind: kind, data: data})
	return n.err
}

func (n *fakeNotifier) kinds(address string) []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.NotificationKind
	for _, m := range n.sent {
		if m.address == address {
			out = append(out, m.kind)
		}
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.StatusEvent
}

func (p *fakePublisher) Publish(_ context.Context, event domain.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type testLedger struct {
	store      *memstore.Store
	oracle     *fakeOracle
	notifier   *fakeNotifier
	publisher  *fakePublisher
	dispatcher *Dispatcher
	ledger     *LedgerService
	admin      *AdminService
	accounts   *AccountService
	operator   uuid.UUID
}

const operatorEmail = "ops@example.com"

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	store := memstore.New()
	oracle := newFakeOracle(map[string]string{"BTC": "15000000", "ETH": "5000000"})
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	dispatcher := NewDispatcher(notifier, publisher, operatorEmail, time.Second)
	ledger := NewLedgerService(store, oracle, dispatcher).WithOracleLimits(time.Second, time.Minute)

	tl := &testLedger{
		store:      store,
		oracle:     oracle,
		notifier:   notifier,
		publisher:  publisher,
		dispatcher: dispatcher,
		ledger:     ledger,
		admin:      NewAdminService(ledger),
		accounts:   NewAccountService(store),
	}
	admin, _, err := tl.accounts.CreateUser(context.Background(), CreateUserRequest{
		FirstName: "Ops",
		Email:     "admin_" + uuid.NewString()[:8] + "@example.com",
		Role:      "admin",
	})
	require.NoError(t, err)
	tl.operator = admin.ID
	return tl
}

func (tl *testLedger) newUser(t *testing.T) *models.User {
	t.Helper()
	user, acct, err := tl.accounts.CreateUser(context.Background(), CreateUserRequest{
		FirstName: "Ada",
		LastName:  "Obi",
		Email:     "user_" + uuid.NewString()[:8] + "@example.com",
	})
	require.NoError(t, err)
	require.Zero(t, acct.AvailableMicros)
	return user
}

// fund credits amount NGN to the owner through an approved deposit.
func (tl *testLedger) fund(t *testing.T, owner uuid.UUID, amount string) {
	t.Helper()
	ctx := context.Background()
	rec, err := tl.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		OwnerID: owner,
		Kind:    "deposit",
		Amount:  decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	_, err = tl.admin.Approve(ctx, rec.ID, tl.operator, "")
	require.NoError(t, err)
}

func (tl *testLedger) balances(t *testing.T, owner uuid.UUID) domain.Balances {
	t.Helper()
	acct, err := tl.ledger.GetAccount(context.Background(), owner)
	require.NoError(t, err)
	return acct.Balances()
}

func ngn(units int64) int64 {
	return units * 1_000_000
}

func withdrawRequest(owner uuid.UUID, amount string) CreateTransactionRequest {
	return CreateTransactionRequest{
		OwnerID: owner,
		Kind:    "withdraw",
		Amount:  decimal.RequireFromString(amount),
		Metadata: map[string]string{
			MetaBankAccountNumber: "0123456789",
			MetaBankName:          "Test Bank",
			MetaAccountName:       "Ada Obi",
		},
	}
}
