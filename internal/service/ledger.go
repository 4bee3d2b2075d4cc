package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ProofStore keeps the payment-proof artifacts attached to submissions.
type ProofStore interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// LedgerService owns the balance and transaction state machine.
type LedgerService struct {
	store         QueryStore
	oracle        PriceOracle
	dispatcher    *Dispatcher
	proofs        ProofStore
	audit         *AuditService
	fees          domain.FeeSchedule
	oracleTimeout time.Duration
	maxQuoteAge   time.Duration
	depositInfo   domain.DepositInstructions
	listedSymbols []string
	now           func() time.Time
}

func NewLedgerService(store QueryStore, oracle PriceOracle, dispatcher *Dispatcher) *LedgerService {
	return &LedgerService{
		store:         store,
		oracle:        oracle,
		dispatcher:    dispatcher,
		audit:         NewAuditService(),
		fees:          domain.DefaultFeeSchedule(),
		oracleTimeout: defaultOracleTimeout,
		now:           time.Now,
	}
}

// WithFees replaces the default fee schedule.
func (s *LedgerService) WithFees(fees domain.FeeSchedule) *LedgerService {
	s.fees = fees
	return s
}

// WithOracleLimits bounds how long a quote may take and how old it may be.
func (s *LedgerService) WithOracleLimits(timeout, maxAge time.Duration) *LedgerService {
	if timeout > 0 {
		s.oracleTimeout = timeout
	}
	s.maxQuoteAge = maxAge
	return s
}

// WithProofStore enables proof submissions.
func (s *LedgerService) WithProofStore(proofs ProofStore) *LedgerService {
	s.proofs = proofs
	return s
}

// CreateTransactionRequest opens a new record for OwnerID.
type CreateTransactionRequest struct {
	OwnerID     uuid.UUID
	Kind        string
	Amount      decimal.Decimal
	Asset       string
	ReferenceID string
	ProofRef    string
	Metadata    map[string]string
	ActorID     *uuid.UUID
	// AllowOperatorKinds permits credit, debit and refund. Only admin paths set it.
	AllowOperatorKinds bool
}

// TransitionRequest moves a record to Target.
type TransitionRequest struct {
	TransactionID uuid.UUID
	Target        string
	ActorID       *uuid.UUID
	Reason        string
}

// CreateTransaction validates, prices and persists a record together with its
// entry effect. Replaying a ReferenceID returns the record created first.
func (s *LedgerService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error) {
	if req.Metadata == nil {
		req.Metadata = make(map[string]string)
	}
	kind, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}
	req.ReferenceID = strings.TrimSpace(req.ReferenceID)

	queries := s.store.Queries()
	if req.ReferenceID != "" {
		existing, err := queries.GetTransactionByReference(ctx, repository.GetTransactionByReferenceParams{
			OwnerID:     repository.ToPgUUID(req.OwnerID),
			ReferenceID: req.ReferenceID,
		})
		if err == nil {
			return s.replayExisting(existing, kind, req)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check transaction reference: %w", err)
		}
	}

	if _, err := queries.GetAccount(ctx, repository.ToPgUUID(req.OwnerID)); err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "load account")
	}

	pricing, err := s.price(ctx, kind, req.Asset, req.Amount)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", domain.ErrInvalidInput, err)
	}

	initial := domain.StatusPending
	if req.ProofRef != "" {
		initial = domain.StatusSubmitted
	}
	transactionID := uuid.New()
	settlement := pricing.SettlementMicros()

	var (
		record *models.Transaction
		owner  repository.User
	)
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		acct, err := qtx.GetAccountForUpdate(ctx, repository.ToPgUUID(req.OwnerID))
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		next, err := toAccountModel(acct).Balances().Apply(domain.EntryEffect(kind, settlement))
		if err != nil {
			return err
		}

		row, err := qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
			ID:               repository.ToPgUUID(transactionID),
			OwnerID:          acct.OwnerID,
			Kind:             string(kind),
			Status:           string(initial),
			RequestedAmount:  req.Amount,
			Asset:            pricing.Asset,
			UnitPriceMicros:  pricing.UnitPriceMicros(),
			FeeMicros:        pricing.FeeMicros(),
			SettlementMicros: settlement,
			ProofRef:         repository.Text(req.ProofRef),
			ReferenceID:      repository.Text(req.ReferenceID),
			Metadata:         metadata,
		})
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		if err := writeBalances(ctx, qtx, acct.OwnerID, next); err != nil {
			return err
		}
		if _, err := qtx.InsertStatusHistory(ctx, repository.InsertStatusHistoryParams{
			TransactionID: row.ID,
			Status:        string(initial),
			Reason:        repository.Text("created"),
			ActorID:       repository.OptionalUUID(req.ActorID),
		}); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
		if err := s.audit.Write(ctx, qtx, AuditEntry{
			Entity:   domain.AuditEntityTransaction,
			EntityID: transactionID,
			ActorID:  req.ActorID,
			Action:   "created",
			To:       string(initial),
			Details: map[string]any{
				"kind":              string(kind),
				"settlement_micros": settlement,
				"metadata":          req.Metadata,
			},
		}); err != nil {
			return err
		}

		owner, err = qtx.GetUser(ctx, acct.OwnerID)
		if err != nil {
			return fmt.Errorf("load owner: %w", err)
		}
		record, err = toTransactionModel(row)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementTransition(string(kind), "created", string(initial))
	zap.L().Info("transaction created",
		zap.String("transaction_id", record.ID.String()),
		zap.String("owner_id", record.OwnerID.String()),
		zap.String("kind", string(kind)),
		zap.String("status", string(initial)),
		zap.Int64("settlement_micros", settlement),
	)
	s.afterCreate(record, owner, req.ActorID)
	return record, nil
}

// SubmitWithProof stores the proof artifact and opens a submitted record
// referencing it. The artifact is removed again if the record cannot be created.
func (s *LedgerService) SubmitWithProof(ctx context.Context, req CreateTransactionRequest, filename string, proof io.Reader) (*models.Transaction, error) {
	if s.proofs == nil {
		return nil, fmt.Errorf("%w: proof storage", domain.ErrDependencyUnavailable)
	}
	if _, err := s.validateCreate(req); err != nil {
		return nil, err
	}

	ref, err := s.proofs.Save(ctx, filename, proof)
	if err != nil {
		return nil, err
	}
	req.ProofRef = ref

	record, err := s.CreateTransaction(ctx, req)
	if err != nil {
		if delErr := s.proofs.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			zap.L().Warn("orphaned proof cleanup failed", zap.String("proof_ref", ref), zap.Error(delErr))
		}
		return nil, err
	}
	if record.ProofRef != ref {
		// A replayed reference returned an earlier record; the new upload is unused.
		if delErr := s.proofs.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			zap.L().Warn("duplicate proof cleanup failed", zap.String("proof_ref", ref), zap.Error(delErr))
		}
	}
	return record, nil
}

// Transition moves a record to a new status under the state machine rules.
func (s *LedgerService) Transition(ctx context.Context, req TransitionRequest) (*models.Transaction, error) {
	target, err := domain.ParseStatus(req.Target)
	if err != nil {
		return nil, err
	}

	var applied appliedTransition
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		applied, err = transitionTransaction(ctx, qtx, s.audit, req.TransactionID, target, req.ActorID, req.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementTransition(string(applied.record.Kind), applied.plan.From.Phase().String(), string(applied.plan.To))
	zap.L().Info("transaction status changed",
		zap.String("transaction_id", applied.record.ID.String()),
		zap.String("kind", string(applied.record.Kind)),
		zap.String("from", string(applied.plan.From)),
		zap.String("to", string(applied.plan.To)),
	)
	s.afterTransition(applied, req.ActorID, req.Reason)
	return applied.record, nil
}

// GetAccount returns the owner's ledger account.
func (s *LedgerService) GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	row, err := s.store.Queries().GetAccount(ctx, repository.ToPgUUID(ownerID))
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	return toAccountModel(row), nil
}

// GetTransaction returns one record with its status history.
func (s *LedgerService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	queries := s.store.Queries()
	row, err := queries.GetTransaction(ctx, repository.ToPgUUID(id))
	if err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "get transaction")
	}
	record, err := toTransactionModel(row)
	if err != nil {
		return nil, err
	}
	history, err := queries.ListStatusHistory(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	record.History = toStatusChanges(history)
	return record, nil
}

// ListTransactions returns records newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > math.MaxInt32 {
		offset = math.MaxInt32
	}

	params := repository.ListTransactionsParams{
		OwnerID: repository.OptionalUUID(filter.OwnerID),
		Limit:   int32(limit),
		Offset:  int32(offset),
	}
	if filter.Status != nil {
		params.Status = repository.Text(string(*filter.Status))
	}
	if filter.Kind != nil {
		params.Kind = repository.Text(string(*filter.Kind))
	}

	rows, err := s.store.Queries().ListTransactions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		record, err := toTransactionModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

// PreviewQuote prices a request without persisting anything.
func (s *LedgerService) PreviewQuote(ctx context.Context, kindName, asset string, amount decimal.Decimal) (domain.Pricing, error) {
	kind, err := domain.ParseKind(kindName)
	if err != nil {
		return domain.Pricing{}, err
	}
	if !kind.Creatable() {
		return domain.Pricing{}, fmt.Errorf("%w: %s transactions are not supported", domain.ErrInvalidInput, kind)
	}
	return s.price(ctx, kind, asset, amount)
}

// OpenProof streams the proof artifact attached to a record.
func (s *LedgerService) OpenProof(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	if s.proofs == nil {
		return nil, fmt.Errorf("%w: proof storage", domain.ErrDependencyUnavailable)
	}
	row, err := s.store.Queries().GetTransaction(ctx, repository.ToPgUUID(id))
	if err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "get transaction")
	}
	if !row.ProofRef.Valid {
		return nil, fmt.Errorf("%w: transaction has no proof", domain.ErrRecordNotFound)
	}
	return s.proofs.Open(ctx, row.ProofRef.String)
}

func (s *LedgerService) price(ctx context.Context, kind domain.Kind, asset string, amount decimal.Decimal) (domain.Pricing, error) {
	if !amount.IsPositive() {
		return domain.Pricing{}, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidInput)
	}
	var quote *domain.Quote
	if kind.NeedsQuote() {
		q, err := s.quote(ctx, asset)
		if err != nil {
			return domain.Pricing{}, err
		}
		quote = &q
	}
	return s.fees.Price(kind, asset, amount, quote)
}

func (s *LedgerService) validateCreate(req CreateTransactionRequest) (domain.Kind, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return "", err
	}
	if !kind.Creatable() {
		return "", fmt.Errorf("%w: %s transactions are not supported", domain.ErrInvalidInput, kind)
	}
	if kind.OperatorOnly() && !req.AllowOperatorKinds {
		return "", fmt.Errorf("%w: %s transactions are operator-only", domain.ErrInvalidInput, kind)
	}
	if req.OwnerID == uuid.Nil {
		return "", fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidInput)
	}
	if err := validateKindFields(kind, req); err != nil {
		return "", err
	}
	return kind, nil
}

func (s *LedgerService) replayExisting(existing repository.Transaction, kind domain.Kind, req CreateTransactionRequest) (*models.Transaction, error) {
	record, err := toTransactionModel(existing)
	if err != nil {
		return nil, err
	}
	if record.Kind != kind || !record.RequestedAmount.Equal(req.Amount) {
		return nil, fmt.Errorf("%w: reference %q already used for a different request", domain.ErrInvalidInput, req.ReferenceID)
	}
	return record, nil
}

func (s *LedgerService) afterCreate(record *models.Transaction, owner repository.User, actorID *uuid.UUID) {
	data := notificationData(record, owner)
	s.dispatcher.Notify(owner.Email, domain.NotifySubmitted, data)
	s.dispatcher.NotifyOperator(domain.NotifyNewSubmission, data)
	s.dispatcher.Publish(domain.StatusEvent{
		TransactionID:    record.ID,
		OwnerID:          record.OwnerID,
		Kind:             record.Kind,
		To:               record.Status,
		SettlementMicros: record.SettlementMicros,
		ActorID:          actorID,
		OccurredAt:       record.CreatedAt,
	})
}

func (s *LedgerService) afterTransition(applied appliedTransition, actorID *uuid.UUID, reason string) {
	record := applied.record
	if applied.plan.Terminal() {
		data := notificationData(record, applied.owner)
		data["Reason"] = reason
		kind := domain.NotifyApproved
		if applied.plan.To.Phase() == domain.PhaseCancelled {
			kind = domain.NotifyRejected
		}
		s.dispatcher.Notify(applied.owner.Email, kind, data)
	}
	s.dispatcher.Publish(domain.StatusEvent{
		TransactionID:    record.ID,
		OwnerID:          record.OwnerID,
		Kind:             record.Kind,
		From:             applied.plan.From,
		To:               applied.plan.To,
		SettlementMicros: record.SettlementMicros,
		ActorID:          actorID,
		OccurredAt:       record.UpdatedAt,
	})
}

func notificationData(record *models.Transaction, owner repository.User) map[string]any {
	return map[string]any{
		"FirstName":       owner.FirstName,
		"Email":           owner.Email,
		"TransactionID":   record.ID.String(),
		"Kind":            string(record.Kind),
		"Status":          string(record.Status),
		"Asset":           record.Asset,
		"RequestedAmount": record.RequestedAmount.String(),
		"Settlement":      domain.Settlement(record.SettlementMicros).String(),
		"Fee":             domain.Settlement(record.FeeMicros).String(),
	}
}
