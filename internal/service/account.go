package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/models"
	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var ErrEmailTaken = errors.New("email already registered")

// AccountService manages users and the ledger account each one owns.
type AccountService struct {
	store QueryStore
	audit *AuditService
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{
		store: store,
		audit: NewAuditService(),
	}
}

// CreateUserRequest registers a user.
type CreateUserRequest struct {
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// CreateUser stores the user and opens its zero-balance account atomically.
func (s *AccountService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, *models.Account, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.Email == "" {
		return nil, nil, fmt.Errorf("%w: first_name and email are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	switch req.Role {
	case "":
		req.Role = domain.RoleUser
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return nil, nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, req.Role)
	}

	id := uuid.New()
	var (
		user    repository.User
		account repository.Account
	)
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		user, err = qtx.CreateUser(ctx, repository.CreateUserParams{
			ID:        repository.ToPgUUID(id),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Role:      req.Role,
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		account, err = qtx.CreateAccount(ctx, repository.CreateAccountParams{
			OwnerID:  user.ID,
			Currency: domain.SettlementCurrency,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return s.audit.Write(ctx, qtx, AuditEntry{
			Entity:   domain.AuditEntityAccount,
			EntityID: id,
			Action:   "opened",
			To:       "open",
			Details:  map[string]any{"role": req.Role, "currency": domain.SettlementCurrency},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("user registered", zap.String("user_id", id.String()), zap.String("role", req.Role))
	return toUserModel(user), toAccountModel(account), nil
}

func (s *AccountService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row, err := s.store.Queries().GetUser(ctx, repository.ToPgUUID(id))
	if err != nil {
		return nil, notFound(err, domain.ErrRecordNotFound, "get user")
	}
	return toUserModel(row), nil
}
