package handler

import (
	"time"

	"solarchain-ledger/internal/adapter/http/middleware"
	"solarchain-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AssetSvc        ports.AssetRegistryService
	LedgerSvc       ports.ShareLedgerService
	DistributionSvc ports.DistributionService
	ClaimSvc        ports.ClaimService
	SaleSvc         ports.SaleService
	PaymentSvc      ports.PaymentService
	ReportingSvc    ports.ReportingService
	TokenSvc        ports.TokenService
	RateLimitStore  middleware.RateLimitStore // nil = rate limiting disabled
	RateLimit       int
	RateWindow      time.Duration
	HistoryPageSize int
	MaxHistoryPage  int
	HealthCheckers  []ports.HealthChecker
	AuditSvc        ports.AuditService // nil = audit logging disabled
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules(deps.RateLimit, deps.RateWindow)
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}
	reads, writes := rl(middleware.GroupReads), rl(middleware.GroupWrites)

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	assetHandler := NewAssetHandler(deps.AssetSvc, deps.LedgerSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	distributionHandler := NewDistributionHandler(deps.DistributionSvc, deps.HistoryPageSize, deps.MaxHistoryPage)
	claimHandler := NewClaimHandler(deps.ClaimSvc)
	saleHandler := NewSaleHandler(deps.SaleSvc)
	reportingHandler := NewReportingHandler(deps.ReportingSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)

	v1.POST("/assets", writes, assetHandler.Register)

	asset := v1.Group("/assets/:asset_id")
	{
		asset.GET("", reads, assetHandler.Get)
		asset.PATCH("/status", writes, assetHandler.SetStatus)
		asset.POST("/roles", writes, assetHandler.GrantRole)

		asset.POST("/issue", writes, ledgerHandler.Issue)
		asset.POST("/transfers", writes, ledgerHandler.Transfer)
		asset.GET("/holders", reads, ledgerHandler.CapTable)
		asset.GET("/holders/:holder_id", reads, ledgerHandler.Position)

		asset.POST("/distributions", writes, distributionHandler.Record)
		asset.GET("/distributions", reads, distributionHandler.History)

		asset.POST("/claims", writes, claimHandler.Claim)
		asset.GET("/claims", reads, claimHandler.ListClaims)

		asset.POST("/sale", writes, saleHandler.Open)
		asset.GET("/sale", reads, saleHandler.State)
		asset.POST("/sale/purchases", writes, saleHandler.Purchase)
		asset.POST("/sale/withdrawals", writes, saleHandler.WithdrawProceeds)
		asset.POST("/sale/reclaim", writes, saleHandler.ReclaimUnsold)

		asset.GET("/summary", reads, reportingHandler.Summary)
	}

	payments := v1.Group("/payments")
	{
		payments.POST("/topups", rl(middleware.GroupTopups), paymentHandler.Topup)
		payments.GET("/balance", reads, paymentHandler.Balance)
		payments.GET("/transfers", reads, paymentHandler.Statement)
	}

	return r
}
