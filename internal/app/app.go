package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/delexpay-ledger/internal/api"
	"github.com/ayo6706/delexpay-ledger/internal/api/middleware"
	"github.com/ayo6706/delexpay-ledger/internal/config"
	"github.com/ayo6706/delexpay-ledger/internal/db"
	"github.com/ayo6706/delexpay-ledger/internal/events"
	"github.com/ayo6706/delexpay-ledger/internal/idempotency"
	"github.com/ayo6706/delexpay-ledger/internal/notify"
	"github.com/ayo6706/delexpay-ledger/internal/observability"
	"github.com/ayo6706/delexpay-ledger/internal/pricefeed"
	"github.com/ayo6706/delexpay-ledger/internal/proofstore"
	"github.com/ayo6706/delexpay-ledger/internal/repository"
	"github.com/ayo6706/delexpay-ledger/internal/repository/memstore"
	"github.com/ayo6706/delexpay-ledger/internal/service"
	"github.com/ayo6706/delexpay-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ledgerStore is what both storage drivers provide.
type ledgerStore interface {
	service.QueryStore
	Ping(ctx context.Context) error
}

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb redis.Cmdable
	if cfg.RedisURL != "" {
		client, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		rdb = client
	}

	var (
		store     ledgerStore
		idemStore *idempotency.Store
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory ledger storage; balances are lost on restart")
		store = memstore.New()
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			logger.Info("database migrations applied")
		}
		store = repository.NewStore(pool)
		idemStore = idempotency.NewStore(rdb, pool, cfg.IdempotencyTTL)
	}

	oracle := pricefeed.NewCached(newPriceSource(cfg), rdb, cfg.OracleCacheTTL)

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}
	notifier, err := notify.New(transport)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	var publisher service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing status events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	if cfg.OperatorEmail == "" {
		logger.Warn("OPERATOR_EMAIL is not set; operators will not be notified of new submissions")
	}
	dispatcher := service.NewDispatcher(notifier, publisher, cfg.OperatorEmail, cfg.NotifyTimeout)
	defer dispatcher.Wait()

	proofs, err := proofstore.NewDisk(cfg.ProofDir, cfg.ProofMaxBytes)
	if err != nil {
		return err
	}

	ledger := service.NewLedgerService(store, oracle, dispatcher).
		WithFees(cfg.Fees).
		WithOracleLimits(cfg.OracleTimeout, cfg.OracleMaxAge).
		WithProofStore(proofs).
		WithDepositInstructions(cfg.Deposit).
		WithListedSymbols(cfg.OracleSymbols)

	router := api.NewRouter(cfg, logger, store, idemStore, rdb, api.Services{
		Ledger:   ledger,
		Admin:    service.NewAdminService(ledger),
		Accounts: service.NewAccountService(store),
		Webhooks: service.NewWebhookService(ledger, cfg.WebhookHMACKey, cfg.WebhookSkipSignature),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		worker.NewReconciliationWorker(service.NewReconciliationService(store)).
			WithInterval(cfg.ReconciliationInterval).
			Start(gctx)
		return nil
	})
	if cfg.PriceRefreshInterval > 0 && len(cfg.OracleSymbols) > 0 {
		g.Go(func() error {
			worker.NewPriceRefreshWorker(oracle, cfg.OracleSymbols).
				WithInterval(cfg.PriceRefreshInterval).
				WithTimeout(cfg.OracleTimeout).
				Start(gctx)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("waiting for pending notifications")
	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func newPriceSource(cfg *config.Config) pricefeed.Source {
	if cfg.OracleDriver == config.OracleStatic {
		return pricefeed.NewStatic(cfg.StaticPrices)
	}
	return pricefeed.NewCoinGecko(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleTimeout)
}

func newTransport(cfg *config.Config) (notify.Transport, error) {
	switch cfg.NotifyDriver {
	case config.NotifySMTP:
		return notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom), nil
	case config.NotifyMailjet:
		return notify.NewMailjet(cfg.MailjetAPIKey, cfg.MailjetSecretKey, cfg.MailFrom), nil
	case config.NotifyLog:
		return notify.Log{}, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.NotifyDriver)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
