package handler

import (
	"net/http"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/service"
)

type UserHandler struct {
	accounts *service.AccountService
}

func NewUserHandler(accounts *service.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

type createUserResponse struct {
	User    *models.User    `json:"user"`
	Account *models.Account `json:"account"`
}

// CreateUser handles POST /v1/users. Self-service signups are always plain
// users; a requested role is ignored.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, account, err := h.accounts.CreateUser(r.Context(), service.CreateUserRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      domain.RoleUser,
	})
	if err != nil {
		RespondServiceError(w, r, err, "create user")
		return
	}
	RespondJSON(w, http.StatusCreated, createUserResponse{User: user, Account: account})
}
