package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/internal/infrastructure/identity"
)

// AttemptLimiter counts failures per subject, typically a client IP.
type AttemptLimiter interface {
	Blocked(ctx context.Context, subject string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, subject string) (int64, error)
	Reset(ctx context.Context, subject string) error
}

// OTPService issues and consumes single-use codes.
type OTPService interface {
	Generate(ctx context.Context, userID, purpose string) (string, error)
	Verify(ctx context.Context, userID, purpose, code string) (bool, error)
	TTL() time.Duration
}

// ChallengeService issues single-use biometric challenges.
type ChallengeService interface {
	Issue(ctx context.Context, userID, deviceID string) (string, error)
	Consume(ctx context.Context, userID, deviceID string) (string, error)
	TTL() time.Duration
}

// GoogleVerifier validates Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*identity.GoogleClaims, error)
}

// Notifier tells users about domain events.
type Notifier interface {
	Notify(ctx context.Context, input *entities.NotifyInput) (*entities.Notification, error)
}

// Sealer encrypts values that must not be queued in plaintext.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// TaskQueue enqueues background work.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) (string, error)
}

// EventPublisher fans in-app events out to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

// PaymentProviders resolves money-moving adapters by currency or name.
type PaymentProviders interface {
	Deposit(currency string) (providers.DepositProvider, error)
	Withdrawal(currency string) (providers.WithdrawalProvider, error)
	Card(currency string) (providers.CardProvider, error)
	DepositByName(name string) (providers.DepositProvider, error)
	WithdrawalByName(name string) (providers.WithdrawalProvider, error)
	CardByName(name string) (providers.CardProvider, error)
}

// MessagingProviders resolves the channel adapters.
type MessagingProviders interface {
	SMS() providers.SMSProvider
	Email() providers.EmailProvider
	Push() providers.PushProvider
}

// WebhookProviders resolves inbound callback handlers by provider name.
type WebhookProviders interface {
	Webhook(name string) (providers.WebhookHandler, error)
}

// OTPCleaner removes expired OTP entries.
type OTPCleaner interface {
	CleanupExpired(ctx context.Context, batch int64) (int, error)
}
