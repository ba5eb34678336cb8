// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	appctx "condo/internal/core/context"
	"condo/internal/domain/charge"
	"condo/internal/domain/fund"
	"condo/internal/domain/payment"
	"condo/internal/domain/unitupdate"
	"condo/internal/infrastructure/http/v1/handlers"
	"condo/internal/infrastructure/http/v1/middleware"
	"condo/internal/infrastructure/storage/postgres"
	"condo/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool backs the readiness probe
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Units    *unitupdate.Service
	Charges  *charge.Service
	Payments *payment.Service
	Sweeper  *charge.Sweeper
	Ledger   *fund.Ledger

	// ChargeRepo serves the unpaid-charges view of a unit
	ChargeRepo charge.UnifiedChargeRepository

	// Location is the civil calendar of "today"
	Location *time.Location

	Version     string
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	if cfg.Pool != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
		}
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")

	// The gateway redirects the payer here without a token.
	paymentHandler := handlers.NewPaymentHandler(base, cfg.Payments, cfg.Location)
	v1.GET("/payments/callback", paymentHandler.Callback)

	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator)) // 1. Validate JWT
	protected.Use(middleware.UserContext())          // 2. Fix the access scope for the domain layer

	registerUnitRoutes(protected, base, cfg)
	registerChargeRoutes(protected, base, cfg)
	registerPaymentRoutes(protected, paymentHandler)
	registerAdminRoutes(protected, base, cfg)

	return router
}

// registerUnitRoutes registers unit endpoints.
func registerUnitRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewUnitHandler(base, cfg.Units, cfg.Ledger, cfg.ChargeRepo)

	units := rg.Group("/units", middleware.RequireStaff())
	{
		units.GET("", h.List)
		units.POST("", h.Create)
		units.GET("/:id", h.Get)
		units.PUT("/:id", h.Update)
		units.POST("/:id/renter/deactivate", h.DeactivateRenter)
		units.GET("/:id/history", h.History)
		units.GET("/:id/fund", h.Fund)
		units.GET("/:id/charges", h.Charges)
	}
}

// registerChargeRoutes registers charge definition and issuance endpoints.
func registerChargeRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewChargeHandler(base, cfg.Charges)

	charges := rg.Group("/charges", middleware.RequireStaff())
	{
		charges.POST("/definitions", h.CreateDefinition)
		charges.GET("/definitions/:id", h.GetDefinition)
		charges.POST("/definitions/:id/issue", h.Issue)
		charges.POST("/preview", h.Preview)
	}
}

// registerPaymentRoutes registers payment endpoints. Residents may pay their
// own charges; manual receipts are staff only.
func registerPaymentRoutes(rg *gin.RouterGroup, h *handlers.PaymentHandler) {
	payments := rg.Group("/payments")
	{
		payments.POST("/:chargeId/request", h.Request)
		payments.POST("/:chargeId/manual", middleware.RequireStaff(), h.Manual)
	}
}

// registerAdminRoutes registers operator endpoints.
func registerAdminRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewAdminHandler(base, cfg.Sweeper, cfg.Location)

	admin := rg.Group("/admin", middleware.RequireRole(appctx.RoleAdmin))
	{
		admin.POST("/penalties/sweep", h.Sweep)
	}
}
