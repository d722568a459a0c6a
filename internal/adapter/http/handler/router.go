package handler

import (
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/middleware"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultMaxBody            = 1 << 20
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultIdempotencyPending = 30 * time.Second
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	OTPSvc         ports.OTPService
	AccountSvc     ports.AccountService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter      // nil = rate limiting disabled
	AuditSvc       ports.AuditService     // nil = audit logging disabled
	Idempotency    ports.IdempotencyCache // nil = Idempotency-Key ignored
	IdempotencyTTL time.Duration
	PendingTTL     time.Duration
	HealthCheckers []ports.HealthChecker
	OpenAPIDoc     []byte
	MaxBodyBytes   int64    // 0 = 1 MiB
	TrustedProxies []string // nil = X-Forwarded-For is never trusted
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Error().Err(err).Msg("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	r.Use(middleware.MaxBodySize(maxBody))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", OpenAPI(deps.OpenAPIDoc))
	}

	rl := func(scope string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, scope, deps.Logger)
	}

	idem := func(c *gin.Context) { c.Next() }
	if deps.Idempotency != nil {
		ttl, pending := deps.IdempotencyTTL, deps.PendingTTL
		if ttl <= 0 {
			ttl = defaultIdempotencyTTL
		}
		if pending <= 0 {
			pending = defaultIdempotencyPending
		}
		idem = middleware.Idempotency(deps.Idempotency, ttl, pending, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	passwordHandler := NewPasswordHandler(deps.OTPSvc, deps.AuthSvc, deps.Logger)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl(service.ScopeAuthRegister), authHandler.Register)
		auth.POST("/login", rl(service.ScopeAuthLogin), authHandler.Login)
		auth.POST("/password/forgot", rl(service.ScopeOTP), passwordHandler.Forgot)
		auth.POST("/password/reset", rl(service.ScopeOTP), passwordHandler.Reset)
		auth.POST("/password/change", jwtAuth, rl(service.ScopePassword), passwordHandler.Change)
	}

	// --- Account holders ---
	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts/me", jwtAuth, middleware.RequireCapability(domain.CapHoldAccount))
	{
		accounts.GET("", rl(service.ScopeAccount), accountHandler.Me)
		accounts.GET("/transactions", rl(service.ScopeAccount), accountHandler.Transactions)
	}

	transactionHandler := NewTransactionHandler(deps.AccountSvc, deps.LedgerSvc)
	v1.POST("/transactions",
		jwtAuth,
		middleware.RequireCapability(domain.CapTransact),
		rl(service.ScopeTransaction),
		idem,
		transactionHandler.Create,
	)

	return r
}
