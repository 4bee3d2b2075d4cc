package api

import (
	"github.com/ayo6706/delexpay-ledger/internal/api/handler"
	"github.com/ayo6706/delexpay-ledger/internal/api/middleware"
	"github.com/ayo6706/delexpay-ledger/internal/api/spec"
	"github.com/ayo6706/delexpay-ledger/internal/config"
	"github.com/ayo6706/delexpay-ledger/internal/idempotency"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services are the application services the HTTP layer exposes.
type Services struct {
	Ledger   *service.LedgerService
	Admin    *service.AdminService
	Accounts *service.AccountService
	Webhooks *service.WebhookService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     handler.Pinger
	idemStore *idempotency.Store
	redis     redis.Cmdable
	services  Services
}

// NewRouter wires handlers to services. idemStore and redis may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, store handler.Pinger, idemStore *idempotency.Store, redis redis.Cmdable, services Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		idemStore: idemStore,
		redis:     redis,
		services:  services,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.store, api.redis)
	authHandler := handler.NewAuthHandler(api.services.Accounts)
	userHandler := handler.NewUserHandler(api.services.Accounts)
	accountHandler := handler.NewAccountHandler(api.services.Ledger)
	transactionHandler := handler.NewTransactionHandler(api.services.Ledger)
	adminHandler := handler.NewAdminHandler(api.services.Admin)
	webhookHandler := handler.NewWebhookHandler(api.services.Webhooks)
	idempotent := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/users", userHandler.CreateUser)
		r.Get("/v1/quotes", accountHandler.Quote)
		r.Get("/v1/prices", accountHandler.Prices)
		r.Get("/v1/deposit-info/{currency}", accountHandler.DepositInstructions)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.WebhookRateLimiter(api.cfg.WebhookRateLimitPerMin))
		r.Post("/v1/webhooks/deposits", webhookHandler.HandleDepositWebhook)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/account", accountHandler.GetMine)

		r.Get("/v1/transactions", transactionHandler.ListMine)
		r.Get("/v1/transactions/{id}", transactionHandler.Get)
		r.Get("/v1/transactions/{id}/proof", transactionHandler.Proof)
		r.With(idempotent).Post("/v1/transactions", transactionHandler.Create)
		r.With(idempotent).Post("/v1/transactions/submit", transactionHandler.Submit)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/transactions", adminHandler.List)
			r.Get("/transactions/{id}", adminHandler.Get)
			r.Post("/transactions/{id}/approve", adminHandler.Approve)
			r.Post("/transactions/{id}/reject", adminHandler.Reject)
			r.Post("/transactions/{id}/status", adminHandler.SetStatus)
			r.Get("/accounts/{owner_id}", adminHandler.GetAccount)
			r.With(idempotent).Post("/adjustments", adminHandler.CreateAdjustment)
		})
	})

	return r
}
