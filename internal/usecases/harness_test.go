package usecases_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"walletcore.backend/internal/config"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
	"walletcore.backend/internal/infrastructure/providers"
	"walletcore.backend/internal/infrastructure/repositories"
	"walletcore.backend/internal/usecases"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/jwt"
	"walletcore.backend/pkg/redis"
	"walletcore.backend/pkg/utils"
)

const (
	testPIN           = "1234"
	testPassword      = "correct-horse"
	testWebhookSecret = "internal-webhook-secret"
)

// recordingQueue keeps every delivery task. In-app tasks are also handed to
// deliverInApp at once, the way an idle worker would pick them up.
type recordingQueue struct {
	mu           sync.Mutex
	payloads     []usecases.DeliveryPayload
	deliverInApp func(ctx context.Context, p usecases.DeliveryPayload) error
}

func (q *recordingQueue) Enqueue(ctx context.Context, taskType string, payload interface{}) (string, error) {
	p, ok := payload.(usecases.DeliveryPayload)
	if !ok || taskType != usecases.TaskDeliverNotification {
		return uuid.NewString(), nil
	}
	q.mu.Lock()
	q.payloads = append(q.payloads, p)
	deliver := q.deliverInApp
	q.mu.Unlock()
	if deliver != nil && p.Channel == entities.ChannelInApp {
		if err := deliver(ctx, p); err != nil {
			return "", err
		}
	}
	return uuid.NewString(), nil
}

func (q *recordingQueue) byChannel(c entities.Channel) []usecases.DeliveryPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []usecases.DeliveryPayload
	for _, p := range q.payloads {
		if p.Channel == c {
			out = append(out, p)
		}
	}
	return out
}

func (q *recordingQueue) reset() {
	q.mu.Lock()
	q.payloads = nil
	q.mu.Unlock()
}

type publishedEvent struct {
	UserID uuid.UUID
	Event  string
	Data   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, userID uuid.UUID, event string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Event: event, Data: data})
	return nil
}

func (p *recordingPublisher) forUser(userID uuid.UUID) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

// harness wires every usecase against sqlite, miniredis and the internal
// provider.
type harness struct {
	t   *testing.T
	ctx context.Context

	db    *gorm.DB
	redis *miniredis.Miniredis

	queue     *recordingQueue
	publisher *recordingPublisher
	sealer    *crypto.Sealer
	registry  *providers.Registry
	otp       *redis.OTPStore
	jwt       *jwt.JWTService

	userRepo    *repositories.UserRepository
	walletRepo  *repositories.WalletRepository
	txnRepo     *repositories.TransactionRepository
	invRepo     *repositories.InvestmentRepository
	loanRepo    *repositories.LoanRepository
	disputeRepo *repositories.DisputeRepository
	auditRepo   *repositories.AuditRepository
	notifRepo   *repositories.NotificationRepository
	cardRepo    *repositories.CardRepository

	audit         *usecases.AuditUsecase
	ledger        *usecases.LedgerUsecase
	transactions  *usecases.TransactionUsecase
	notifications *usecases.NotificationUsecase
	auth          *usecases.AuthUsecase
	biometric     *usecases.BiometricUsecase
	kyc           *usecases.KYCUsecase
	cards         *usecases.CardUsecase
	payments      *usecases.PaymentUsecase
	investments   *usecases.InvestmentUsecase
	loans         *usecases.LoanUsecase
	disputes      *usecases.DisputeUsecase
	webhooks      *usecases.WebhookUsecase
	maintenance   *usecases.MaintenanceUsecase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		redis:       mr,
		queue:       &recordingQueue{},
		publisher:   &recordingPublisher{},
		userRepo:    repositories.NewUserRepository(db),
		walletRepo:  repositories.NewWalletRepository(db),
		txnRepo:     repositories.NewTransactionRepository(db),
		invRepo:     repositories.NewInvestmentRepository(db),
		loanRepo:    repositories.NewLoanRepository(db),
		disputeRepo: repositories.NewDisputeRepository(db),
		auditRepo:   repositories.NewAuditRepository(db),
		notifRepo:   repositories.NewNotificationRepository(db),
		cardRepo:    repositories.NewCardRepository(db),
	}

	currencies := repositories.NewCurrencyRepository(db)
	for _, c := range []*entities.Currency{
		{Code: "NGN", Name: "Naira", Symbol: "₦", DecimalPlaces: 2, ExchangeRateUSD: decimal.RequireFromString("0.00065"), IsActive: true},
		{Code: "USD", Name: "US Dollar", Symbol: "$", DecimalPlaces: 2, ExchangeRateUSD: decimal.NewFromInt(1), IsActive: true},
	} {
		require.NoError(t, currencies.Upsert(h.ctx, c))
	}

	internal := providers.NewInternal(testWebhookSecret)
	h.registry = providers.NewRegistry(config.ProvidersConfig{UseInternal: true, TestMode: true}, internal)
	h.otp, err = redis.NewOTPStore(client, "otp-test-secret")
	require.NoError(t, err)
	h.sealer, err = crypto.NewSealer("delivery-test-secret", "walletcore/delivery-context/test")
	require.NoError(t, err)
	h.jwt = jwt.NewJWTService("jwt-test-secret", "walletcore-test", 15*time.Minute, 24*time.Hour)

	uow := repositories.NewUnitOfWork(db)
	h.audit = usecases.NewAuditUsecase(h.auditRepo)
	pinLimiter := redis.NewAttemptLimiter(client, "pin", 5, 15*time.Minute)
	loginLimiter := redis.NewAttemptLimiter(client, "login", 5, 15*time.Minute)
	h.ledger = usecases.NewLedgerUsecase(uow, h.walletRepo, repositories.NewHoldRepository(db), currencies, pinLimiter, h.audit).
		WithAccountNumberSource(providers.AccountNumber)
	h.notifications = usecases.NewNotificationUsecase(h.notifRepo, h.userRepo, h.queue, h.publisher, h.registry, h.sealer, 90)
	h.queue.deliverInApp = h.notifications.Deliver
	h.transactions = usecases.NewTransactionUsecase(uow, h.txnRepo, h.walletRepo, h.userRepo, h.cardRepo,
		h.ledger, h.registry, h.notifications, h.audit)
	h.auth = usecases.NewAuthUsecase(uow, h.userRepo, h.jwt, h.otp, loginLimiter, h.notifications, h.audit, nil)
	h.biometric = usecases.NewBiometricUsecase(uow, h.userRepo, repositories.NewBiometricCredentialRepository(db),
		repositories.NewTrustTokenRepository(db), redis.NewChallengeStore(client, 5*time.Minute),
		h.auth, h.notifications, h.audit, 0)
	h.kyc = usecases.NewKYCUsecase(uow, repositories.NewKYCRepository(db), h.userRepo, h.notifications, h.audit)
	h.cards = usecases.NewCardUsecase(uow, h.cardRepo, h.walletRepo, h.userRepo, h.ledger, h.transactions,
		h.registry, h.notifications, h.audit)
	h.payments = usecases.NewPaymentUsecase(uow, repositories.NewPaymentLinkRepository(db),
		repositories.NewInvoiceRepository(db), h.userRepo, h.ledger, h.transactions, h.notifications, h.audit)
	h.investments = usecases.NewInvestmentUsecase(uow, h.invRepo, h.ledger, h.transactions, h.notifications, h.audit)
	h.loans = usecases.NewLoanUsecase(uow, h.loanRepo, h.ledger, h.transactions, h.notifications, h.audit)
	h.disputes = usecases.NewDisputeUsecase(uow, h.disputeRepo, h.txnRepo, h.notifications, h.audit)
	h.webhooks = usecases.NewWebhookUsecase(h.registry, h.transactions, h.audit)
	h.maintenance = usecases.NewMaintenanceUsecase(h.ledger, h.transactions, h.notifications, h.payments, h.otp, 50)
	return h
}

// user stores a verified, active account with every channel enabled.
func (h *harness) user(role entities.UserRole) *entities.User {
	h.t.Helper()
	id := utils.GenerateUUIDv7()
	now := time.Now().UTC()
	u := &entities.User{
		ID:           id,
		Email:        null.StringFrom(id.String() + "@example.com"),
		FirstName:    "Test",
		LastName:     strings.ToUpper(string(role)),
		Role:         role,
		IsVerified:   true,
		IsActive:     true,
		AuthProvider: entities.AuthProviderLocal,
		PushEnabled:  true,
		InAppEnabled: true,
		EmailEnabled: true,
		SMSEnabled:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(h.t, h.userRepo.Create(h.ctx, u))
	return u
}

// wallet opens a wallet with a PIN and sets its balance directly.
func (h *harness) wallet(userID uuid.UUID, currency, balance string) *entities.Wallet {
	h.t.Helper()
	w, err := h.ledger.CreateWallet(h.ctx, userID, &entities.CreateWalletInput{Currency: currency, AccountName: "Test Holder"})
	require.NoError(h.t, err)
	require.NoError(h.t, h.ledger.SetPIN(h.ctx, userID, w.ID, &entities.SetPINInput{NewPIN: testPIN}, ""))
	if balance != "" {
		w, err = h.walletRepo.GetByID(h.ctx, w.ID)
		require.NoError(h.t, err)
		amount := decimal.RequireFromString(balance)
		w.Balance = amount
		w.AvailableBalance = amount
		require.NoError(h.t, h.walletRepo.Update(h.ctx, w))
	}
	return h.reload(w.ID)
}

func (h *harness) reload(walletID uuid.UUID) *entities.Wallet {
	h.t.Helper()
	w, err := h.walletRepo.GetByID(h.ctx, walletID)
	require.NoError(h.t, err)
	return w
}

func (h *harness) balance(walletID uuid.UUID) string {
	h.t.Helper()
	return h.reload(walletID).Balance.StringFixed(2)
}

func (h *harness) auditLogs(filter entities.AuditFilter) []*entities.AuditLog {
	h.t.Helper()
	logs, _, err := h.audit.List(h.ctx, filter, 1, 100)
	require.NoError(h.t, err)
	return logs
}

func (h *harness) walletTransactions(walletID uuid.UUID) []*entities.Transaction {
	h.t.Helper()
	txns, _, err := h.txnRepo.List(h.ctx, entities.TransactionFilter{WalletID: &walletID}, 100, 0)
	require.NoError(h.t, err)
	return txns
}

// deliveryContext opens the sealed values of a queued delivery.
func (h *harness) deliveryContext(p usecases.DeliveryPayload) map[string]interface{} {
	h.t.Helper()
	if p.SealedContext == "" {
		return nil
	}
	raw, err := h.sealer.Open(p.SealedContext)
	require.NoError(h.t, err)
	var values map[string]interface{}
	require.NoError(h.t, json.Unmarshal(raw, &values))
	return values
}

func (h *harness) clearDeliveries() {
	h.queue.reset()
	h.publisher.reset()
}

// freezeClock pins the usecase clock and restores it after the test.
func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	t.Cleanup(usecases.SetNow(func() time.Time { return at }))
}
