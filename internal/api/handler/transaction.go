package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/proofstore"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	proofFormField   = "proof"
	maxMultipartBody = proofstore.DefaultMaxBytes + 1<<20
)

// TransactionHandler serves the user-facing transaction endpoints.
type TransactionHandler struct {
	ledger *service.LedgerService
}

func NewTransactionHandler(ledger *service.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

type createTransactionRequest struct {
	Kind        string            `json:"kind"`
	Amount      decimal.Decimal   `json:"amount"`
	Asset       string            `json:"asset,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Create handles POST /v1/transactions.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.ledger.CreateTransaction(r.Context(), service.CreateTransactionRequest{
		OwnerID:     actorID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Asset:       req.Asset,
		ReferenceID: req.ReferenceID,
		Metadata:    req.Metadata,
		ActorID:     &actorID,
	})
	if err != nil {
		RespondServiceError(w, r, err, "create transaction")
		return
	}
	RespondJSON(w, http.StatusCreated, record)
}

// Submit handles POST /v1/transactions/submit: a multipart form carrying the
// same fields as Create plus the proof file.
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, r, http.StatusRequestEntityTooLarge, "proof/too-large", "proof exceeds size limit")
			return
		}
		RespondError(w, r, http.StatusBadRequest, "request/invalid-form", "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(proofFormField)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "proof/missing", "proof file is required")
		return
	}
	defer file.Close()

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a decimal number")
		return
	}

	record, err := h.ledger.SubmitWithProof(r.Context(), service.CreateTransactionRequest{
		OwnerID:     actorID,
		Kind:        r.FormValue("kind"),
		Amount:      amount,
		Asset:       r.FormValue("asset"),
		ReferenceID: r.FormValue("reference_id"),
		Metadata:    formMetadata(r),
		ActorID:     &actorID,
	}, header.Filename, file)
	if err != nil {
		if errors.Is(err, proofstore.ErrTooLarge) {
			RespondError(w, r, http.StatusRequestEntityTooLarge, "proof/too-large", "proof exceeds size limit")
			return
		}
		RespondServiceError(w, r, err, "submit transaction")
		return
	}
	RespondJSON(w, http.StatusCreated, record)
}

// ListMine handles GET /v1/transactions.
func (h *TransactionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.OwnerID = &actorID

	records, err := h.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		RespondServiceError(w, r, err, "list transactions")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

// Get handles GET /v1/transactions/{id}. Users only see their own records.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get transaction")
		return
	}
	if !isAdmin && record.OwnerID != actorID {
		// Indistinguishable from a missing record.
		RespondServiceError(w, r, domain.ErrRecordNotFound, "get transaction")
		return
	}
	RespondJSON(w, http.StatusOK, record)
}

// Proof handles GET /v1/transactions/{id}/proof.
func (h *TransactionHandler) Proof(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	record, err := h.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get transaction")
		return
	}
	if !isAdmin && record.OwnerID != actorID {
		RespondServiceError(w, r, domain.ErrRecordNotFound, "get transaction")
		return
	}

	rc, err := h.ledger.OpenProof(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "open proof")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", proofstore.ContentType(record.ProofRef))
	w.Header().Set("Content-Disposition", `inline; filename="`+record.ProofRef+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		zap.L().Warn("stream proof failed", zap.Error(err), zap.String("transaction_id", id.String()))
	}
}

// formMetadata collects the metadata keys a multipart submission may carry.
func formMetadata(r *http.Request) map[string]string {
	keys := []string{
		service.MetaNetwork,
		service.MetaPayoutDestination,
		service.MetaRecipientAddress,
		service.MetaBankAccountNumber,
		service.MetaBankName,
		service.MetaAccountName,
		service.MetaMethod,
	}
	md := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(r.FormValue(k)); v != "" {
			md[k] = v
		}
	}
	return md
}

func parseFilter(w http.ResponseWriter, r *http.Request) (models.TransactionFilter, bool) {
	var filter models.TransactionFilter
	limit, offset, err := pageParams(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", err.Error())
		return filter, false
	}
	filter.Limit, filter.Offset = limit, offset

	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status, err := domain.ParseStatus(v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-status", err.Error())
			return filter, false
		}
		filter.Status = &status
	}
	if v := q.Get("kind"); v != "" {
		kind, err := domain.ParseKind(v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-kind", err.Error())
			return filter, false
		}
		filter.Kind = &kind
	}
	return filter, true
}
