// Package memstore is an in-process implementation of the ledger store. It
// serializes transactions behind one mutex and rolls back through an undo log,
// so it gives the same per-account guarantees as the Postgres store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type referenceKey struct {
	owner pgtype.UUID
	ref   string
}

// Store holds all rows in memory. The zero value is not usable; call New.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	users        map[pgtype.UUID]repository.User
	emails       map[string]pgtype.UUID
	accounts     map[pgtype.UUID]repository.Account
	transactions map[pgtype.UUID]repository.Transaction
	txSeq        map[pgtype.UUID]int64
	references   map[referenceKey]pgtype.UUID
	history      map[pgtype.UUID][]repository.TransactionStatusHistory
	audit        []repository.AuditLog
	seq          int64
}

func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		users:        make(map[pgtype.UUID]repository.User),
		emails:       make(map[string]pgtype.UUID),
		accounts:     make(map[pgtype.UUID]repository.Account),
		transactions: make(map[pgtype.UUID]repository.Transaction),
		txSeq:        make(map[pgtype.UUID]int64),
		references:   make(map[referenceKey]pgtype.UUID),
		history:      make(map[pgtype.UUID][]repository.TransactionStatusHistory),
	}
}

// Queries returns a query set where every call is its own transaction.
func (s *Store) Queries() repository.Querier {
	return &queries{s: s}
}

// RunInTx runs fn with exclusive access to the store. Writes made by fn are
// undone when it returns an error.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := &queries{s: s, inTx: true}
	if err := fn(q); err != nil {
		for i := len(q.undo) - 1; i >= 0; i-- {
			q.undo[i]()
		}
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// AuditLog returns a copy of the audit rows written so far.
func (s *Store) AuditLog() []repository.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

type queries struct {
	s    *Store
	inTx bool
	undo []func()
}

var _ repository.Querier = (*queries)(nil)

func (q *queries) lock() func() {
	if q.inTx {
		return func() {}
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock
}

func (q *queries) onRollback(fn func()) {
	if q.inTx {
		q.undo = append(q.undo, fn)
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "insert or update violates foreign key constraint"}
}

func checkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23514", ConstraintName: constraint, Message: "new row violates check constraint"}
}

func (q *queries) CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error) {
	defer q.lock()()
	s := q.s
	if _, ok := s.users[arg.ID]; ok {
		return repository.User{}, uniqueViolation("users_pkey")
	}
	email := strings.ToLower(arg.Email)
	if _, ok := s.emails[email]; ok {
		return repository.User{}, uniqueViolation("users_email_key")
	}
	u := repository.User{
		ID:        arg.ID,
		FirstName: arg.FirstName,
		LastName:  arg.LastName,
		Email:     arg.Email,
		Role:      arg.Role,
		CreatedAt: repository.Timestamptz(s.now()),
	}
	s.users[arg.ID] = u
	s.emails[email] = arg.ID
	q.onRollback(func() {
		delete(s.users, arg.ID)
		delete(s.emails, email)
	})
	return u, nil
}

func (q *queries) GetUser(ctx context.Context, id pgtype.UUID) (repository.User, error) {
	defer q.lock()()
	u, ok := q.s.users[id]
	if !ok {
		return repository.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (q *queries) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (repository.Account, error) {
	defer q.lock()()
	s := q.s
	if _, ok := s.users[arg.OwnerID]; !ok {
		return repository.Account{}, foreignKeyViolation("accounts_owner_id_fkey")
	}
	if _, ok := s.accounts[arg.OwnerID]; ok {
		return repository.Account{}, uniqueViolation("accounts_pkey")
	}
	now := repository.Timestamptz(s.now())
	a := repository.Account{OwnerID: arg.OwnerID, Currency: arg.Currency, CreatedAt: now, UpdatedAt: now}
	s.accounts[arg.OwnerID] = a
	q.onRollback(func() { delete(s.accounts, arg.OwnerID) })
	return a, nil
}

func (q *queries) GetAccount(ctx context.Context, ownerID pgtype.UUID) (repository.Account, error) {
	defer q.lock()()
	a, ok := q.s.accounts[ownerID]
	if !ok {
		return repository.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

// GetAccountForUpdate needs no row lock: transactions already run exclusively.
func (q *queries) GetAccountForUpdate(ctx context.Context, ownerID pgtype.UUID) (repository.Account, error) {
	return q.GetAccount(ctx, ownerID)
}

func (q *queries) UpdateAccountBalances(ctx context.Context, arg repository.UpdateAccountBalancesParams) (int64, error) {
	defer q.lock()()
	s := q.s
	prev, ok := s.accounts[arg.OwnerID]
	if !ok {
		return 0, nil
	}
	if arg.AvailableMicros < 0 || arg.FrozenMicros < 0 || arg.LifetimeDepositedMicros < 0 || arg.LifetimeWithdrawnMicros < 0 {
		return 0, checkViolation("accounts_balances_check")
	}
	next := prev
	next.AvailableMicros = arg.AvailableMicros
	next.FrozenMicros = arg.FrozenMicros
	next.LifetimeDepositedMicros = arg.LifetimeDepositedMicros
	next.LifetimeWithdrawnMicros = arg.LifetimeWithdrawnMicros
	next.UpdatedAt = repository.Timestamptz(s.now())
	s.accounts[arg.OwnerID] = next
	q.onRollback(func() { s.accounts[arg.OwnerID] = prev })
	return 1, nil
}

func (q *queries) ListAccounts(ctx context.Context) ([]repository.Account, error) {
	defer q.lock()()
	out := make([]repository.Account, 0, len(q.s.accounts))
	for _, a := range q.s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return repository.FromPgUUID(out[i].OwnerID).String() < repository.FromPgUUID(out[j].OwnerID).String()
	})
	return out, nil
}

func (q *queries) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (repository.Transaction, error) {
	defer q.lock()()
	s := q.s
	if _, ok := s.accounts[arg.OwnerID]; !ok {
		return repository.Transaction{}, foreignKeyViolation("transactions_owner_id_fkey")
	}
	if _, ok := s.transactions[arg.ID]; ok {
		return repository.Transaction{}, uniqueViolation("transactions_pkey")
	}
	var refKey referenceKey
	if arg.ReferenceID.Valid {
		refKey = referenceKey{owner: arg.OwnerID, ref: arg.ReferenceID.String}
		if _, ok := s.references[refKey]; ok {
			return repository.Transaction{}, uniqueViolation("transactions_owner_reference_idx")
		}
	}
	if !arg.RequestedAmount.IsPositive() || arg.SettlementMicros <= 0 {
		return repository.Transaction{}, checkViolation("transactions_amount_check")
	}

	metadata := arg.Metadata
	if metadata == nil {
		metadata = []byte(`{}`)
	}
	now := repository.Timestamptz(s.now())
	t := repository.Transaction{
		ID:               arg.ID,
		OwnerID:          arg.OwnerID,
		Kind:             arg.Kind,
		Status:           arg.Status,
		RequestedAmount:  arg.RequestedAmount,
		Asset:            arg.Asset,
		UnitPriceMicros:  arg.UnitPriceMicros,
		FeeMicros:        arg.FeeMicros,
		SettlementMicros: arg.SettlementMicros,
		ProofRef:         arg.ProofRef,
		ReferenceID:      arg.ReferenceID,
		Metadata:         append([]byte(nil), metadata...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.seq++
	s.transactions[arg.ID] = t
	s.txSeq[arg.ID] = s.seq
	if arg.ReferenceID.Valid {
		s.references[refKey] = arg.ID
	}
	q.onRollback(func() {
		delete(s.transactions, arg.ID)
		delete(s.txSeq, arg.ID)
		if arg.ReferenceID.Valid {
			delete(s.references, refKey)
		}
	})
	return t, nil
}

func (q *queries) GetTransaction(ctx context.Context, id pgtype.UUID) (repository.Transaction, error) {
	defer q.lock()()
	t, ok := q.s.transactions[id]
	if !ok {
		return repository.Transaction{}, pgx.ErrNoRows
	}
	return t, nil
}

func (q *queries) GetTransactionForUpdate(ctx context.Context, id pgtype.UUID) (repository.Transaction, error) {
	return q.GetTransaction(ctx, id)
}

func (q *queries) GetTransactionByReference(ctx context.Context, arg repository.GetTransactionByReferenceParams) (repository.Transaction, error) {
	defer q.lock()()
	id, ok := q.s.references[referenceKey{owner: arg.OwnerID, ref: arg.ReferenceID}]
	if !ok {
		return repository.Transaction{}, pgx.ErrNoRows
	}
	return q.s.transactions[id], nil
}

func (q *queries) UpdateTransactionStatus(ctx context.Context, arg repository.UpdateTransactionStatusParams) (int64, error) {
	defer q.lock()()
	s := q.s
	prev, ok := s.transactions[arg.ID]
	if !ok || prev.Status != arg.PrevStatus {
		return 0, nil
	}
	next := prev
	next.Status = arg.Status
	next.UpdatedAt = repository.Timestamptz(s.now())
	s.transactions[arg.ID] = next
	q.onRollback(func() { s.transactions[arg.ID] = prev })
	return 1, nil
}

func (q *queries) ListTransactions(ctx context.Context, arg repository.ListTransactionsParams) ([]repository.Transaction, error) {
	defer q.lock()()
	s := q.s
	var matched []repository.Transaction
	for _, t := range s.transactions {
		if arg.OwnerID.Valid && t.OwnerID != arg.OwnerID {
			continue
		}
		if arg.Status.Valid && t.Status != arg.Status.String {
			continue
		}
		if arg.Kind.Valid && t.Kind != arg.Kind.String {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		return s.txSeq[matched[i].ID] > s.txSeq[matched[j].ID]
	})

	offset := int(arg.Offset)
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if arg.Limit > 0 && int(arg.Limit) < len(matched) {
		matched = matched[:arg.Limit]
	}
	return matched, nil
}

func (q *queries) SumInFlightByOwner(ctx context.Context, statuses []string) ([]repository.SumInFlightByOwnerRow, error) {
	defer q.lock()()
	wanted := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}
	totals := make(map[pgtype.UUID]int64)
	for _, t := range q.s.transactions {
		if _, ok := wanted[t.Status]; ok {
			totals[t.OwnerID] += t.SettlementMicros
		}
	}
	out := make([]repository.SumInFlightByOwnerRow, 0, len(totals))
	for owner, sum := range totals {
		out = append(out, repository.SumInFlightByOwnerRow{OwnerID: owner, InFlightMicros: sum})
	}
	return out, nil
}

func (q *queries) InsertStatusHistory(ctx context.Context, arg repository.InsertStatusHistoryParams) (repository.TransactionStatusHistory, error) {
	defer q.lock()()
	s := q.s
	if _, ok := s.transactions[arg.TransactionID]; !ok {
		return repository.TransactionStatusHistory{}, foreignKeyViolation("transaction_status_history_transaction_id_fkey")
	}
	s.seq++
	row := repository.TransactionStatusHistory{
		ID:            s.seq,
		TransactionID: arg.TransactionID,
		Status:        arg.Status,
		Reason:        arg.Reason,
		ActorID:       arg.ActorID,
		CreatedAt:     repository.Timestamptz(s.now()),
	}
	prevLen := len(s.history[arg.TransactionID])
	s.history[arg.TransactionID] = append(s.history[arg.TransactionID], row)
	q.onRollback(func() {
		if prevLen == 0 {
			delete(s.history, arg.TransactionID)
			return
		}
		s.history[arg.TransactionID] = s.history[arg.TransactionID][:prevLen]
	})
	return row, nil
}

func (q *queries) ListStatusHistory(ctx context.Context, transactionID pgtype.UUID) ([]repository.TransactionStatusHistory, error) {
	defer q.lock()()
	rows := q.s.history[transactionID]
	out := make([]repository.TransactionStatusHistory, len(rows))
	copy(out, rows)
	return out, nil
}

func (q *queries) InsertAuditLog(ctx context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	defer q.lock()()
	s := q.s
	s.seq++
	s.audit = append(s.audit, repository.AuditLog{
		ID:         s.seq,
		EntityType: arg.EntityType,
		EntityID:   arg.EntityID,
		ActorID:    arg.ActorID,
		Action:     arg.Action,
		PrevState:  arg.PrevState,
		NextState:  arg.NextState,
		Metadata:   append([]byte(nil), arg.Metadata...),
		CreatedAt:  repository.Timestamptz(s.now()),
	})
	prevLen := len(s.audit) - 1
	q.onRollback(func() { s.audit = s.audit[:prevLen] })
	return s.seq, nil
}
