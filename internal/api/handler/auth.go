package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/api/middleware"
	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/google/uuid"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Login handles POST /v1/auth/login. It is a development login: a known user
// id is exchanged for a bearer token carrying that user's role.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}

	user, err := h.accounts.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			RespondError(w, r, http.StatusNotFound, "user/not-found", "User not found")
			return
		}
		RespondServiceError(w, r, err, "login")
		return
	}

	token, err := middleware.IssueToken(user.ID, user.Role, tokenTTL)
	if err != nil {
		RespondServiceError(w, r, err, "sign token")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(tokenTTL.Seconds()),
	})
}
