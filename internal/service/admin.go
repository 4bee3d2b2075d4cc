package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminService is the operator review surface over the ledger.
type AdminService struct {
	ledger *LedgerService
}

func NewAdminService(ledger *LedgerService) *AdminService {
	return &AdminService{ledger: ledger}
}

// List returns records across all owners, filtered by status and kind.
func (s *AdminService) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return s.ledger.ListTransactions(ctx, filter)
}

func (s *AdminService) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.ledger.GetTransaction(ctx, id)
}

func (s *AdminService) GetAccount(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	return s.ledger.GetAccount(ctx, ownerID)
}

// Approve moves a record to successful.
func (s *AdminService) Approve(ctx context.Context, id uuid.UUID, actorID uuid.UUID, reason string) (*models.Transaction, error) {
	return s.ledger.Transition(ctx, TransitionRequest{
		TransactionID: id,
		Target:        string(domain.StatusSuccessful),
		ActorID:       &actorID,
		Reason:        defaultReason(reason, "approved"),
	})
}

// Reject moves a record to cancelled and discards its proof artifact.
func (s *AdminService) Reject(ctx context.Context, id uuid.UUID, actorID uuid.UUID, reason string) (*models.Transaction, error) {
	record, err := s.ledger.Transition(ctx, TransitionRequest{
		TransactionID: id,
		Target:        string(domain.StatusCancelled),
		ActorID:       &actorID,
		Reason:        defaultReason(reason, "rejected"),
	})
	if err != nil {
		return nil, err
	}
	if record.ProofRef != "" && s.ledger.proofs != nil {
		if err := s.ledger.proofs.Delete(context.WithoutCancel(ctx), record.ProofRef); err != nil {
			zap.L().Warn("rejected proof cleanup failed",
				zap.String("transaction_id", record.ID.String()),
				zap.String("proof_ref", record.ProofRef),
				zap.Error(err),
			)
		}
	}
	return record, nil
}

// SetStatus applies any status the state machine allows.
func (s *AdminService) SetStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID, reason string) (*models.Transaction, error) {
	return s.ledger.Transition(ctx, TransitionRequest{
		TransactionID: id,
		Target:        status,
		ActorID:       &actorID,
		Reason:        defaultReason(reason, "status_set"),
	})
}

// AdjustmentRequest opens an operator credit, debit or refund against an owner.
type AdjustmentRequest struct {
	OwnerID     uuid.UUID
	Kind        string
	Amount      decimal.Decimal
	Reason      string
	ReferenceID string
}

var errNotAdjustment = errors.New("adjustments must be credit, debit or refund")

// CreateAdjustment opens an operator-only record. It enters in-flight like any
// other record and must be approved to settle.
func (s *AdminService) CreateAdjustment(ctx context.Context, actorID uuid.UUID, req AdjustmentRequest) (*models.Transaction, error) {
	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if !kind.OperatorOnly() {
		return nil, errors.Join(domain.ErrInvalidInput, errNotAdjustment)
	}
	return s.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		OwnerID:            req.OwnerID,
		Kind:               string(kind),
		Amount:             req.Amount,
		ReferenceID:        req.ReferenceID,
		Metadata:           map[string]string{MetaReason: strings.TrimSpace(req.Reason)},
		ActorID:            &actorID,
		AllowOperatorKinds: true,
	})
}

func defaultReason(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}
