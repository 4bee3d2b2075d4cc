package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdminHandler is the operator review surface. Routes are mounted behind
// RequireAdmin, so handlers only need the acting operator's id.
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type decisionRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type adjustmentRequest struct {
	OwnerID     uuid.UUID       `json:"owner_id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// List handles GET /v1/admin/transactions?status=&kind=&owner_id=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	if v := r.URL.Query().Get("owner_id"); v != "" {
		ownerID, err := uuid.Parse(v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-owner_id", "Invalid owner_id")
			return
		}
		filter.OwnerID = &ownerID
	}

	records, err := h.admin.List(r.Context(), filter)
	if err != nil {
		RespondServiceError(w, r, err, "admin list transactions")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

// Get handles GET /v1/admin/transactions/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	record, err := h.admin.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "admin get transaction")
		return
	}
	RespondJSON(w, http.StatusOK, record)
}

// GetAccount handles GET /v1/admin/accounts/{owner_id}.
func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "owner_id")
	if !ok {
		return
	}
	account, err := h.admin.GetAccount(r.Context(), ownerID)
	if err != nil {
		RespondServiceError(w, r, err, "admin get account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// Approve handles POST /v1/admin/transactions/{id}/approve.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.admin.Approve, "approve transaction")
}

// Reject handles POST /v1/admin/transactions/{id}/reject.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.admin.Reject, "reject transaction")
}

// SetStatus handles POST /v1/admin/transactions/{id}/status.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := h.admin.SetStatus(r.Context(), id, req.Status, actorID, req.Reason)
	if err != nil {
		RespondServiceError(w, r, err, "set transaction status")
		return
	}
	RespondJSON(w, http.StatusOK, record)
}

// CreateAdjustment handles POST /v1/admin/adjustments.
func (h *AdminHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	var req adjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	record, err := h.admin.CreateAdjustment(r.Context(), actorID, service.AdjustmentRequest{
		OwnerID:     req.OwnerID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		RespondServiceError(w, r, err, "create adjustment")
		return
	}
	RespondJSON(w, http.StatusCreated, record)
}

type decisionFunc func(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.Transaction, error)

func (h *AdminHandler) decide(w http.ResponseWriter, r *http.Request, fn decisionFunc, op string) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req decisionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	record, err := fn(r.Context(), id, actorID, req.Reason)
	if err != nil {
		RespondServiceError(w, r, err, op)
		return
	}
	RespondJSON(w, http.StatusOK, record)
}
