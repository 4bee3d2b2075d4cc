package handler

import (
	"net/http"

	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AccountHandler struct {
	ledger *service.LedgerService
}

func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// GetMine handles GET /v1/account.
func (h *AccountHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	account, err := h.ledger.GetAccount(r.Context(), actorID)
	if err != nil {
		RespondServiceError(w, r, err, "get account")
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// Quote handles GET /v1/quotes?kind=&asset=&amount=. Nothing is persisted.
func (h *AccountHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a decimal number")
		return
	}
	pricing, err := h.ledger.PreviewQuote(r.Context(), q.Get("kind"), q.Get("asset"), amount)
	if err != nil {
		RespondServiceError(w, r, err, "preview quote")
		return
	}
	RespondJSON(w, http.StatusOK, pricing)
}

// DepositInstructions handles GET /v1/deposit-info/{currency}.
func (h *AccountHandler) DepositInstructions(w http.ResponseWriter, r *http.Request) {
	info, err := h.ledger.DepositInstructions(chi.URLParam(r, "currency"))
	if err != nil {
		RespondServiceError(w, r, err, "deposit instructions")
		return
	}
	RespondJSON(w, http.StatusOK, info)
}

// Prices handles GET /v1/prices. Symbols the oracle cannot price are listed
// as unavailable instead of failing the whole board.
func (h *AccountHandler) Prices(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.ledger.ListPrices(r.Context()))
}
