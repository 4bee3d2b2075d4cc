package handler

import (
	"io"
	"net/http"

	"github.com/ayo6706/delexpay-ledger/internal/service"
)

const (
	signatureHeader    = "X-Webhook-Signature"
	maxWebhookBodySize = 64 << 10
)

// WebhookHandler receives deposit settlement callbacks from the payment provider.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// HandleDepositWebhook handles POST /v1/webhooks/deposits.
func (h *WebhookHandler) HandleDepositWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	resp, err := h.webhookSvc.HandleDepositWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		RespondServiceError(w, r, err, "deposit webhook")
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}
