package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"walletcore.backend/internal/app"
	"walletcore.backend/internal/config"
	"walletcore.backend/internal/infrastructure/ws"
	"walletcore.backend/internal/interfaces/http/handlers"
	"walletcore.backend/internal/interfaces/http/middleware"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	newBrokerClient   = redis.NewClient
	buildContainer    = app.New
	newRateLimitStore = middleware.NewRateLimitStore
	runServer         = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB          = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

// webhookRateLimit caps provider callbacks per source IP and rate window.
const webhookRateLimit = 600

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	initLog(cfg.Server.Env)
	defer logger.Sync()
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	// Cache: OTPs, limiters, idempotency replays and the notification bus
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	cache := redis.GetClient()
	logger.Info(ctx, "Redis initialized")

	broker := cache
	if cfg.Broker.URL != cfg.Redis.URL {
		b, err := newBrokerClient(cfg.Broker.URL, cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer b.Close()
		broker = b
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.Warn(ctx, "Database not available, endpoints will return errors", zap.Error(err))
	} else {
		logger.Info(ctx, "Connected to PostgreSQL via GORM")
	}

	c, err := buildContainer(cfg, db, cache, broker)
	if err != nil {
		return err
	}

	authRateStore, err := newRateLimitStore(cache, "ratelimit:auth")
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	webhookRateStore, err := newRateLimitStore(cache, "ratelimit:webhook")
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Realtime fan-out: every server instance relays the bus to its sockets
	hub := ws.NewHub()
	go hub.Run(runCtx)
	go func() {
		if err := hub.Listen(runCtx, c.Bus); err != nil {
			logger.Error(runCtx, "Notification bus listener stopped", zap.Error(err))
		}
	}()

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	origins := splitOrigins(cfg.Server.FrontendURL)
	applyCORSMiddleware(r, origins)
	registerHealthRoute(r, handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": sqlDB.PingContext,
		"redis":    func(ctx context.Context) error { return cache.Ping(ctx).Err() },
		"broker":   func(ctx context.Context) error { return broker.Ping(ctx).Err() },
	}))
	deps := newRouteDeps(c, hub, origins)
	deps.authRateLimit = middleware.RateLimitMiddleware(authRateStore, cfg.Security.AuthRateLimit, cfg.Security.AuthRateLimitSpan)
	deps.webhookRateLimit = middleware.RateLimitMiddleware(webhookRateStore, webhookRateLimit, cfg.Security.AuthRateLimitSpan)
	registerAPIV1Routes(r, deps)
	logger.Info(ctx, "Routes registered", zap.Int("count", len(r.Routes())))

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(ctx, "Shutting down server")
			cancel()
		case <-runCtx.Done():
		}
	}()

	logger.Info(ctx, "Walletcore backend starting",
		zap.String("port", cfg.Server.Port),
		zap.String("api", "http://localhost:"+cfg.Server.Port+"/api/v1"))

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// newRouteDeps builds the handlers; rate limiters are left for the caller.
func newRouteDeps(c *app.Container, hub *ws.Hub, origins []string) routeDeps {
	return routeDeps{
		authHandler:         handlers.NewAuthHandler(c.Auth, c.Notifications),
		biometricHandler:    handlers.NewBiometricHandler(c.Biometric),
		walletHandler:       handlers.NewWalletHandler(c.Ledger, c.Transactions),
		transactionHandler:  handlers.NewTransactionHandler(c.Transactions),
		cardHandler:         handlers.NewCardHandler(c.Cards),
		paymentHandler:      handlers.NewPaymentHandler(c.Payments),
		disputeHandler:      handlers.NewDisputeHandler(c.Disputes),
		notificationHandler: handlers.NewNotificationHandler(c.Notifications),
		kycHandler:          handlers.NewKYCHandler(c.KYC),
		investmentHandler:   handlers.NewInvestmentHandler(c.Investments),
		loanHandler:         handlers.NewLoanHandler(c.Loans),
		adminHandler: handlers.NewAdminHandler(c.KYC, c.Disputes, c.Transactions, c.Ledger,
			c.Loans, c.Investments, c.Audit),
		webhookHandler:  handlers.NewWebhookHandler(c.Webhooks),
		realtimeHandler: handlers.NewRealtimeHandler(hub, c.Notifications, origins),
		authMiddleware:  middleware.AuthMiddleware(c.JWT),
		socketAuth:      middleware.DualAuthMiddleware(c.JWT),
	}
}

// splitOrigins reads FRONTEND_URL as a comma separated origin list.
func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
