package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/api/problem"
	"github.com/ayo6706/delexpay-ledger/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	userContextKey  contextKey = "user_id"
	roleContextKey  contextKey = "user_role"
	traceContextKey contextKey = "trace_id"
)

var (
	jwtSecret   []byte
	jwtIssuer   string
	jwtAudience string
)

var (
	errAuthNotConfigured = errors.New("jwt secret is not configured")
	errBadClaims         = errors.New("token claims do not name a ledger principal")
)

// principalClaims is the token body. Subject must equal UserID when present.
type principalClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// principal is the caller a verified token describes.
type principal struct {
	id   uuid.UUID
	role string
}

func SetJWTSecret(secret string) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

// IssueToken signs an HS256 token for userID carrying role.
func IssueToken(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errAuthNotConfigured
	}
	issued := time.Now()
	claims := principalClaims{UserID: userID.String(), Role: role}
	claims.Subject = userID.String()
	claims.Issuer = jwtIssuer
	claims.IssuedAt = jwt.NewNumericDate(issued)
	claims.ExpiresAt = jwt.NewNumericDate(issued.Add(ttl))
	if jwtAudience != "" {
		claims.Audience = jwt.ClaimStrings{jwtAudience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

func parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtIssuer))
	}
	if jwtAudience != "" {
		opts = append(opts, jwt.WithAudience(jwtAudience))
	}
	return opts
}

// verifyToken checks the signature and registered claims, then resolves the principal.
func verifyToken(raw string) (principal, error) {
	var claims principalClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, parserOptions()...); err != nil {
		return principal{}, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil || id == uuid.Nil {
		return principal{}, errBadClaims
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return principal{}, errBadClaims
	}
	switch claims.Role {
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return principal{}, errBadClaims
	}
	return principal{id: id, role: claims.Role}, nil
}

// AuthMiddleware requires a bearer token and puts the caller's id and role on the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, hasBearer := strings.CutPrefix(header, "Bearer ")
		switch {
		case header == "":
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), "", "Authorization header required")
			return
		case !hasBearer || raw == "":
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), "", "expected a Bearer token")
			return
		case len(jwtSecret) == 0:
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), "", "auth is not configured")
			return
		}

		p, err := verifyToken(raw)
		if errors.Is(err, errBadClaims) {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), "", "Invalid token claims")
			return
		}
		if err != nil {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), "", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, p.id)
		ctx = context.WithValue(ctx, roleContextKey, p.role)
		noteUser(ctx, p.id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose token role is not role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserRoleFromContext(r.Context()) != role {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), "", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole for operators.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin)(next)
}

func fromContext[T any](ctx context.Context, key contextKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}

// UserIDFromContext returns the authenticated user ID, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	return fromContext[uuid.UUID](ctx, userContextKey)
}

func UserRoleFromContext(ctx context.Context) string {
	return fromContext[string](ctx, roleContextKey)
}

// TraceIDFromContext returns the trace id TraceMiddleware assigned.
func TraceIDFromContext(ctx context.Context) string {
	return fromContext[string](ctx, traceContextKey)
}
