package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrDepositPayloadMismatch = errors.New("deposit payload does not match existing reference")
)

// WebhookService applies payment-provider confirmations to deposit records.
type WebhookService struct {
	ledger  *LedgerService
	hmacKey []byte
	skipSig bool
}

// NewWebhookService creates a new WebhookService instance.
func NewWebhookService(ledger *LedgerService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		ledger:  ledger,
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
	}
}

// DepositWebhookPayload is the provider's confirmation of a deposit.
type DepositWebhookPayload struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
}

// DepositWebhookResponse represents the response to a deposit webhook.
type DepositWebhookResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

// HandleDepositWebhook verifies the signature and drives the referenced
// deposit to successful or failed. Re-delivering a confirmation that was
// already applied returns the current record.
func (s *WebhookService) HandleDepositWebhook(ctx context.Context, payload []byte, signature string) (*DepositWebhookResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var deposit DepositWebhookPayload
	if err := json.Unmarshal(payload, &deposit); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", domain.ErrInvalidInput, err)
	}
	deposit.Reference = strings.TrimSpace(deposit.Reference)

	transactionID, err := uuid.Parse(strings.TrimSpace(deposit.TransactionID))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid transaction_id", domain.ErrInvalidInput)
	}
	target, err := domain.ParseStatus(deposit.Status)
	if err != nil {
		return nil, err
	}
	if target != domain.StatusSuccessful && target != domain.StatusFailed {
		return nil, fmt.Errorf("%w: webhook status must be successful or failed", domain.ErrInvalidInput)
	}

	current, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if current.Kind != domain.KindDeposit {
		return nil, fmt.Errorf("%w: transaction %s is not a deposit", domain.ErrInvalidInput, transactionID)
	}
	if deposit.Reference != "" && current.ReferenceID != "" && deposit.Reference != current.ReferenceID {
		return nil, ErrDepositPayloadMismatch
	}

	record, err := s.ledger.Transition(ctx, TransitionRequest{
		TransactionID: transactionID,
		Target:        string(target),
		Reason:        "provider_webhook",
	})
	if errors.Is(err, domain.ErrNoOpTransition) {
		zap.L().Info("deposit webhook replayed", zap.String("transaction_id", transactionID.String()))
		return webhookResponse(current, "Deposit already processed"), nil
	}
	if err != nil {
		return nil, err
	}
	return webhookResponse(record, "Deposit processed successfully"), nil
}

func webhookResponse(record *models.Transaction, message string) *DepositWebhookResponse {
	return &DepositWebhookResponse{
		TransactionID: record.ID,
		Status:        string(record.Status),
		Message:       message,
	}
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(SignPayload(s.hmacKey, payload)))
}

// SignPayload returns the signature header value a provider sends for payload.
func SignPayload(key, payload []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
