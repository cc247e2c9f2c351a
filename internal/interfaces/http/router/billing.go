package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rentalops/backend/internal/infrastructure/config"
	"github.com/rentalops/backend/internal/infrastructure/logger"
	"github.com/rentalops/backend/internal/interfaces/http/handler"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served by the billing API
type Handlers struct {
	Invoice *handler.InvoiceHandler
	Payment *handler.PaymentHandler
	Summary *handler.SummaryHandler
	System  *handler.SystemHandler
}

// EngineConfig holds what the middleware chain needs
type EngineConfig struct {
	Logger    *zap.Logger
	HTTP      config.HTTPConfig
	Tracing   middleware.TracingConfig
	Profiling middleware.ProfilingConfig
	// Meter records HTTP metrics; nil disables them
	Meter metric.Meter
	// RateLimiter is used when HTTP.RateLimitEnabled is set; the caller owns its lifecycle
	RateLimiter *middleware.RateLimiter
}

// NewEngine builds a gin engine with the global middleware chain and the billing routes.
// Order: request id, recovery, request log, tracing, profiling labels, metrics, security headers,
// CORS, body limit, rate limit.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	middleware.SetupValidator()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(cfg.Logger),
		logger.GinMiddleware(cfg.Logger),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.ProfilingWithConfig(cfg.Profiling),
		middleware.HTTPMetrics(cfg.Meter),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled && cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	engine.GET("/health", h.System.Health)

	r := NewRouter(engine)
	r.Register(BillingRoutes(h))
	r.Setup()
	return engine, nil
}

// BillingRoutes declares the /billing API. Invoice and payment routes require a project scope;
// the summary accepts an optional one.
func BillingRoutes(h Handlers) *DomainGroup {
	billing := NewDomainGroup("billing", "/billing")

	billing.Group("summary", "").
		Use(middleware.OptionalProjectScope(), middleware.TracingAttributeInjector()).
		GET("/summary", h.Summary.Get)

	billing.Group("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	scoped := billing.Group("ledger", "").
		Use(middleware.ProjectScope(), middleware.TracingAttributeInjector())

	scoped.Group("invoices", "/invoices").
		POST("", h.Invoice.Compose).
		GET("", h.Invoice.List).
		GET("/:id", h.Invoice.Get).
		PUT("/:id", h.Invoice.Recompose).
		POST("/:id/cancel", h.Invoice.Cancel).
		POST("/:id/reconcile", h.Invoice.Reconcile).
		POST("/:id/payments", h.Payment.Record).
		GET("/:id/payments", h.Payment.List)

	scoped.Group("payments", "/payments").
		GET("/:id", h.Payment.Get).
		PUT("/:id", h.Payment.Update).
		DELETE("/:id", h.Payment.Delete).
		POST("/:id/verify", h.Payment.Verify).
		POST("/:id/slips", h.Payment.AttachSlip).
		GET("/:id/slips/:slipId/url", h.Payment.SlipURL)

	return billing
}
