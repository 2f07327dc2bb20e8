package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solarchain-ledger/config"
	httpHandler "solarchain-ledger/internal/adapter/http/handler"
	"solarchain-ledger/internal/adapter/storage/memory"
	pgStorage "solarchain-ledger/internal/adapter/storage/postgres"
	redisStorage "solarchain-ledger/internal/adapter/storage/redis"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/internal/service"
	"solarchain-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// repositories is the storage surface the services are built from.
type repositories struct {
	assets        ports.AssetRepository
	roles         ports.RoleRepository
	ledgers       ports.ShareLedgerRepository
	holdings      ports.HoldingRepository
	distributions ports.DistributionRepository
	claims        ports.ClaimRepository
	sales         ports.SaleRepository
	idempotency   ports.IdempotencyRepository
	accounts      ports.PaymentAccountRepository
	transfers     ports.PaymentTransferRepository
	audit         ports.AuditRepository
	deliveries    ports.EventDeliveryRepository
	transactor    ports.DBTransactor
	health        []ports.HealthChecker
	close         func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting SolarChain Ledger")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer repos.close()

	// Optional Redis: idempotency fast path, read cache and rate limiting
	var (
		idempotencyCache ports.IdempotencyCache
		readCache        ports.ReadCache
		rateLimitStore   *redisStorage.RateLimitStore
	)
	healthCheckers := repos.health
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		readCache = redisStorage.NewReadCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	access := service.NewAccessControl(repos.roles, cfg.Ledger.Admins)
	notifier := service.NewEventNotifier(service.EventNotifierConfig{
		URL:            cfg.Events.WebhookURL,
		Secret:         cfg.Events.Secret,
		Timeout:        cfg.Events.Timeout,
		RetryIntervals: cfg.Events.RetryIntervals,
	}, repos.deliveries, sigSvc, &http.Client{Timeout: cfg.Events.Timeout}, log)
	if notifier == nil {
		log.Info().Msg("Event webhook not configured, notifications disabled")
	}

	// Initialize business services
	paymentSvc := service.NewPaymentService(repos.accounts, repos.transfers, access, repos.transactor, nil, log)
	deps := service.LedgerDeps{
		Assets:        repos.assets,
		Ledgers:       repos.ledgers,
		Holdings:      repos.holdings,
		Distributions: repos.distributions,
		Claims:        repos.claims,
		Sales:         repos.sales,
		Idempotency:   repos.idempotency,
		Transactor:    repos.transactor,
		Access:        access,
		Payments:      paymentSvc,
	}

	routerDeps := httpHandler.RouterDeps{
		AssetSvc:        service.NewAssetService(repos.assets, repos.roles, access, repos.transactor, readCache, cfg.Ledger.AssetCacheTTL, log),
		LedgerSvc:       service.NewLedgerService(deps, log),
		DistributionSvc: service.NewDistributionService(deps, readCache, notifier, cfg.Ledger.HistoryPageSize, log),
		ClaimSvc:        service.NewClaimService(deps, notifier, log),
		SaleSvc:         service.NewSaleService(deps, idempotencyCache, notifier, cfg.Ledger.IdempotencyTTL, log),
		PaymentSvc:      paymentSvc,
		ReportingSvc:    service.NewReportingService(deps, repos.accounts),
		TokenSvc:        tokenSvc,
		RateLimit:       cfg.Ledger.RateLimit,
		RateWindow:      cfg.Ledger.RateWindow,
		HistoryPageSize: cfg.Ledger.HistoryPageSize,
		MaxHistoryPage:  cfg.Ledger.MaxHistoryPage,
		HealthCheckers:  healthCheckers,
		AuditSvc:        service.NewAuditService(repos.audit, log),
		Logger:          log,
	}
	if rateLimitStore != nil {
		routerDeps.RateLimitStore = rateLimitStore
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(routerDeps)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if notifier != nil {
		if err := notifier.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Event deliveries still in flight at exit")
		}
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warn().Msg("Using in-memory storage, state is lost on restart")
		store := memory.New()
		return &repositories{
			assets:        memory.NewAssetRepo(store),
			roles:         memory.NewRoleRepo(store),
			ledgers:       memory.NewShareLedgerRepo(store),
			holdings:      memory.NewHoldingRepo(store),
			distributions: memory.NewDistributionRepo(store),
			claims:        memory.NewClaimRepo(store),
			sales:         memory.NewSaleRepo(store),
			idempotency:   memory.NewIdempotencyRepo(store),
			accounts:      memory.NewPaymentAccountRepo(store),
			transfers:     memory.NewPaymentTransferRepo(store),
			audit:         memory.NewAuditRepo(store),
			deliveries:    memory.NewEventDeliveryRepo(store),
			transactor:    store,
			health:        []ports.HealthChecker{store},
			close:         func() {},
		}, nil

	case config.StorageDriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(pool, log); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		return &repositories{
			assets:        pgStorage.NewAssetRepo(pool),
			roles:         pgStorage.NewRoleRepo(pool),
			ledgers:       pgStorage.NewShareLedgerRepo(pool),
			holdings:      pgStorage.NewHoldingRepo(pool),
			distributions: pgStorage.NewDistributionRepo(pool),
			claims:        pgStorage.NewClaimRepo(pool),
			sales:         pgStorage.NewSaleRepo(pool),
			idempotency:   pgStorage.NewIdempotencyRepo(pool),
			accounts:      pgStorage.NewPaymentAccountRepo(pool),
			transfers:     pgStorage.NewPaymentTransferRepo(pool),
			audit:         pgStorage.NewAuditRepo(pool),
			deliveries:    pgStorage.NewEventDeliveryRepo(pool),
			transactor:    pgStorage.NewTransactor(pool, cfg.Database.LockTimeout),
			health:        []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
