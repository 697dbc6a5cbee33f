// Package app assembles repositories, providers and usecases from a loaded
// configuration. The server, the worker and walletctl share it so each
// binary only decides which parts it runs.
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"walletcore.backend/internal/config"
	"walletcore.backend/internal/infrastructure/identity"
	"walletcore.backend/internal/infrastructure/jobs"
	"walletcore.backend/internal/infrastructure/providers"
	"walletcore.backend/internal/infrastructure/queue"
	"walletcore.backend/internal/infrastructure/repositories"
	"walletcore.backend/internal/infrastructure/ws"
	"walletcore.backend/internal/usecases"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/jwt"
	"walletcore.backend/pkg/redis"
)

// QueueName is the redis task queue shared by the server and the worker.
const QueueName = "walletcore"

const (
	challengeTTL           = 5 * time.Minute
	deliveryContextPurpose = "walletcore/delivery-context/v1"
)

// Container holds every wired dependency.
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Cache  *goredis.Client

	Registry *providers.Registry
	Queue    *queue.Queue
	Bus      *ws.Bus
	JWT      *jwt.JWTService
	OTP      *redis.OTPStore

	Audit         *usecases.AuditUsecase
	Ledger        *usecases.LedgerUsecase
	Transactions  *usecases.TransactionUsecase
	Notifications *usecases.NotificationUsecase
	Auth          *usecases.AuthUsecase
	Biometric     *usecases.BiometricUsecase
	KYC           *usecases.KYCUsecase
	Cards         *usecases.CardUsecase
	Payments      *usecases.PaymentUsecase
	Investments   *usecases.InvestmentUsecase
	Loans         *usecases.LoanUsecase
	Disputes      *usecases.DisputeUsecase
	Webhooks      *usecases.WebhookUsecase
	Maintenance   *usecases.MaintenanceUsecase
}

// New wires the container. cache backs OTPs, limiters and the pub/sub bus;
// broker backs the task queue and may be the same client.
func New(cfg *config.Config, db *gorm.DB, cache, broker *goredis.Client) (*Container, error) {
	otp, err := redis.NewOTPStore(cache, cfg.Security.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize otp store: %w", err)
	}
	sealer, err := crypto.NewSealer(cfg.Security.SecretKey, deliveryContextPurpose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize delivery sealer: %w", err)
	}

	c := &Container{
		Config:   cfg,
		DB:       db,
		Cache:    cache,
		Registry: providers.Build(cfg),
		Queue: queue.New(broker, QueueName, queue.Options{
			MaxAttempts: cfg.Notifications.MaxAttempts,
			Backoff:     cfg.Notifications.BackoffBase,
		}),
		Bus: ws.NewBus(cache),
		JWT: jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry),
		OTP: otp,
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	currencyRepo := repositories.NewCurrencyRepository(db)
	holdRepo := repositories.NewHoldRepository(db)
	txnRepo := repositories.NewTransactionRepository(db)
	cardRepo := repositories.NewCardRepository(db)
	uow := repositories.NewUnitOfWork(db)

	pinLimiter := redis.NewAttemptLimiter(cache, "pin", cfg.Security.PINMaxFailures, cfg.Security.PINWindow)
	loginLimiter := redis.NewAttemptLimiter(cache, "login", cfg.Security.LoginMaxFailures, cfg.Security.LoginWindow)

	var google usecases.GoogleVerifier
	if cfg.Security.GoogleClientID != "" {
		google = identity.NewGoogleVerifier(cfg.Security.GoogleClientID, cfg.Security.GoogleJWKSURL, cfg.Providers.Timeout)
	}

	// Usecases
	c.Audit = usecases.NewAuditUsecase(repositories.NewAuditRepository(db))
	c.Ledger = usecases.NewLedgerUsecase(uow, walletRepo, holdRepo, currencyRepo, pinLimiter, c.Audit)
	if cfg.Providers.UseInternal {
		c.Ledger.WithAccountNumberSource(providers.AccountNumber)
	}
	c.Notifications = usecases.NewNotificationUsecase(repositories.NewNotificationRepository(db), userRepo,
		c.Queue, c.Bus, c.Registry, sealer, cfg.Notifications.RetentionDays)
	c.Transactions = usecases.NewTransactionUsecase(uow, txnRepo, walletRepo, userRepo, cardRepo,
		c.Ledger, c.Registry, c.Notifications, c.Audit)
	c.Auth = usecases.NewAuthUsecase(uow, userRepo, c.JWT, otp, loginLimiter, c.Notifications, c.Audit, google)
	c.Biometric = usecases.NewBiometricUsecase(uow, userRepo, repositories.NewBiometricCredentialRepository(db),
		repositories.NewTrustTokenRepository(db), redis.NewChallengeStore(cache, challengeTTL),
		c.Auth, c.Notifications, c.Audit, cfg.Security.TrustTokenTTL)
	c.KYC = usecases.NewKYCUsecase(uow, repositories.NewKYCRepository(db), userRepo, c.Notifications, c.Audit)
	c.Cards = usecases.NewCardUsecase(uow, cardRepo, walletRepo, userRepo, c.Ledger, c.Transactions,
		c.Registry, c.Notifications, c.Audit)
	c.Payments = usecases.NewPaymentUsecase(uow, repositories.NewPaymentLinkRepository(db),
		repositories.NewInvoiceRepository(db), userRepo, c.Ledger, c.Transactions, c.Notifications, c.Audit)
	c.Investments = usecases.NewInvestmentUsecase(uow, repositories.NewInvestmentRepository(db),
		c.Ledger, c.Transactions, c.Notifications, c.Audit)
	c.Loans = usecases.NewLoanUsecase(uow, repositories.NewLoanRepository(db),
		c.Ledger, c.Transactions, c.Notifications, c.Audit)
	c.Disputes = usecases.NewDisputeUsecase(uow, repositories.NewDisputeRepository(db), txnRepo, c.Notifications, c.Audit)
	c.Webhooks = usecases.NewWebhookUsecase(c.Registry, c.Transactions, c.Audit)
	c.Maintenance = usecases.NewMaintenanceUsecase(c.Ledger, c.Transactions, c.Notifications, c.Payments,
		otp, cfg.Jobs.BatchSize)

	return c, nil
}

// RegisterTaskHandlers binds queue task types to their usecases.
func (c *Container) RegisterTaskHandlers() {
	c.Queue.Register(usecases.TaskDeliverNotification, func(ctx context.Context, task *queue.Task) error {
		var payload usecases.DeliveryPayload
		if err := task.Decode(&payload); err != nil {
			return fmt.Errorf("decode delivery payload: %w", err)
		}
		return c.Notifications.Deliver(ctx, payload)
	})
}

// Jobs returns every scheduled processor with its configured interval.
func (c *Container) Jobs() []*jobs.PeriodicJob {
	jc := c.Config.Jobs
	batch := jc.BatchSize
	return []*jobs.PeriodicJob{
		jobs.NewPeriodicJob("hold-expiry", jc.HoldExpiryInterval, c.Maintenance.ExpireHolds),
		jobs.NewPeriodicJob("payment-expiry", jc.LinkExpiryInterval, c.Maintenance.ExpirePayments),
		jobs.NewPeriodicJob("withdrawal-reconcile", jc.HoldExpiryInterval, c.Maintenance.ReconcileWithdrawals),
		jobs.NewPeriodicJob("otp-cleanup", jc.OTPCleanupInterval, c.Maintenance.CleanupOTP),
		jobs.NewPeriodicJob("notification-retention", jc.DailyInterval, c.Maintenance.PurgeNotifications),
		jobs.NewPeriodicJob("investment-maturity", jc.DailyInterval, func(ctx context.Context) (int, error) {
			return c.Investments.ProcessMaturity(ctx, batch)
		}),
		jobs.NewPeriodicJob("investment-returns", jc.DailyInterval, func(ctx context.Context) (int, error) {
			return c.Investments.ProcessReturns(ctx, batch)
		}),
		jobs.NewPeriodicJob("portfolio-recalc", jc.DailyInterval, c.Investments.RecalculatePortfolios),
		jobs.NewPeriodicJob("loan-auto-repayment", jc.DailyInterval, func(ctx context.Context) (int, error) {
			return c.Loans.ProcessAutoRepayments(ctx, batch)
		}),
		jobs.NewPeriodicJob("loan-overdue", jc.DailyInterval, func(ctx context.Context) (int, error) {
			return c.Loans.SweepOverdue(ctx, batch)
		}),
	}
}

// Job finds a scheduled processor by name.
func (c *Container) Job(name string) (*jobs.PeriodicJob, bool) {
	for _, j := range c.Jobs() {
		if j.Name() == name {
			return j, true
		}
	}
	return nil, false
}
