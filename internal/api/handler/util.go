package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/delexpay-ledger/internal/api/middleware"
	"github.com/ayo6706/delexpay-ledger/internal/api/problem"
	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

// RespondError writes an RFC 7807 problem. Bare slugs are expanded to full type URLs.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondServiceError maps a service error onto its HTTP status. Unknown
// errors are logged and reported as 500 without leaking details.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, problemType, message := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error(op+" failed",
			zap.Error(err),
			zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		)
	}
	RespondError(w, r, status, problemType, message)
}

func mapServiceError(err error) (status int, problemType, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature"
	case errors.Is(err, service.ErrDepositPayloadMismatch):
		return http.StatusConflict, "webhook/payload-mismatch", err.Error()
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "user/email-taken", "email already registered"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "request/invalid-input", err.Error()
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "ledger/insufficient-funds", "insufficient available balance"
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusServiceUnavailable, "pricing/unavailable", "price is temporarily unavailable"
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, "transaction/not-found", "transaction not found"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account/not-found", "account not found"
	case errors.Is(err, domain.ErrDepositInfoNotFound):
		return http.StatusNotFound, "deposit/not-found", "no deposit instructions for this currency"
	case errors.Is(err, domain.ErrNoOpTransition):
		return http.StatusConflict, "transaction/no-op", "transaction is already in the requested status"
	case errors.Is(err, domain.ErrTerminalState):
		return http.StatusConflict, "transaction/terminal", "transaction is already final"
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "dependency/unavailable", "a required dependency is unavailable"
	}
	if status, problemType, message, ok := mapDBError(err); ok {
		return status, problemType, message
	}
	return http.StatusInternalServerError, "internal-server-error", "unexpected server error"
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	actorID := middleware.UserIDFromContext(r.Context())
	if actorID == uuid.Nil {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}
	return actorID, middleware.UserRoleFromContext(r.Context()) == domain.RoleAdmin, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads limit and offset; zero means the service default.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = int(n)
	}
	return limit, offset, nil
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
