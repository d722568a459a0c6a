package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nithin1018/Village-Banking-App/config"
	httpHandler "github.com/nithin1018/Village-Banking-App/internal/adapter/http/handler"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/messaging/rabbitmq"
	memStorage "github.com/nithin1018/Village-Banking-App/internal/adapter/storage/memory"
	pgStorage "github.com/nithin1018/Village-Banking-App/internal/adapter/storage/postgres"
	redisStorage "github.com/nithin1018/Village-Banking-App/internal/adapter/storage/redis"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/internal/service"
	"github.com/nithin1018/Village-Banking-App/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// storage bundles the repositories of whichever backend is configured.
type storage struct {
	users      ports.UserRepository
	accounts   ports.AccountRepository
	txns       ports.TransactionRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("VBANK_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Village Bank API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	// Rate limiting and Idempotency-Key replay need Redis; without it every
	// scope is unlimited and the header is ignored.
	var (
		limiter    ports.RateLimiter
		idempCache ports.IdempotencyCache
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		limiter = service.NewScopedRateLimiter(redisStorage.NewRateLimitStore(rdb, cfg.Redis.Prefix), cfg.RateLimit)
		idempCache = redisStorage.NewIdempotencyCache(rdb, cfg.Idempotency.Prefix)
		store.health = append(store.health, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, rate limiting and idempotency keys are off")
	}

	var sender ports.MailSender
	if cfg.RabbitMQ.URL != "" {
		var opts []rabbitmq.Option
		if cfg.RabbitMQ.BodyKey != "" {
			sealer, err := service.NewAESMessageSealer(cfg.RabbitMQ.BodyKey)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid RabbitMQ body key")
			}
			opts = append(opts, rabbitmq.WithSealer(sealer))
		}
		if cfg.RabbitMQ.SigningKey != "" {
			opts = append(opts, rabbitmq.WithSigner(service.NewHMACMessageSigner(cfg.RabbitMQ.SigningKey)))
		}

		publisher, err := rabbitmq.Dial(cfg.RabbitMQ, logger.Component(log, "rabbitmq"), opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		sender = publisher
	} else {
		log.Warn().Msg("RabbitMQ URL not set, notifications are logged only")
		sender = rabbitmq.NewLogSender(logger.Component(log, "mail"))
	}

	dispatcher := service.NewNotificationDispatcher(sender, cfg.Notification, logger.Component(log, "notifications"))
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()

	// Core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	allocator := service.NewAccountNumberAllocator(cfg.Ledger, logger.Component(log, "allocator"))

	// Business services
	authSvc := service.NewAuthService(store.users, store.accounts, store.transactor, allocator, hashSvc, tokenSvc, log)
	otpSvc := service.NewOTPService(store.users, hashSvc, dispatcher, cfg.OTP.TTL, logger.Component(log, "otp"))
	ledgerSvc := service.NewLedgerService(store.accounts, store.txns, store.transactor, logger.Component(log, "ledger"))
	accountSvc := service.NewAccountService(store.accounts, store.txns, cfg.Ledger.HistoryLimit)
	auditSvc := service.NewAuditService(store.audit, logger.Component(log, "audit"))

	openAPIDoc, err := os.ReadFile("docs/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI document not found, /swagger/spec will return 404")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		OTPSvc:         otpSvc,
		AccountSvc:     accountSvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    limiter,
		AuditSvc:       auditSvc,
		Idempotency:    idempCache,
		IdempotencyTTL: cfg.Idempotency.TTL,
		PendingTTL:     cfg.Idempotency.PendingTTL,
		HealthCheckers: store.health,
		OpenAPIDoc:     openAPIDoc,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TrustedProxies: cfg.Server.TrustedProxies,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Workers exit once ctx is cancelled; queued notifications not yet sent are dropped.
	<-dispatchDone
	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage, all data is lost on exit")
		store := memStorage.NewStore(cfg.Database.LockTimeout)
		return &storage{
			users:      memStorage.NewUserRepo(store),
			accounts:   memStorage.NewAccountRepo(store),
			txns:       memStorage.NewTransactionRepo(store),
			audit:      memStorage.NewAuditRepo(store),
			transactor: store,
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &storage{
		users:      pgStorage.NewUserRepo(pool),
		accounts:   pgStorage.NewAccountRepo(pool),
		txns:       pgStorage.NewTransactionRepo(pool),
		audit:      pgStorage.NewAuditRepo(pool),
		transactor: pgStorage.NewTransactor(pool, cfg.Database.LockTimeout),
		health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:      pool.Close,
	}, nil
}
