package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"walletcore.backend/internal/domain/entities"
)

// UserRepository defines user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetByPhone(ctx context.Context, phone string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
}

// TrustTokenRepository stores per-device trust tokens.
type TrustTokenRepository interface {
	Create(ctx context.Context, token *entities.TrustToken) error
	GetActive(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) (*entities.TrustToken, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, userID uuid.UUID, deviceID string, at time.Time) (int64, error)
}

// BiometricCredentialRepository stores device public keys.
type BiometricCredentialRepository interface {
	Upsert(ctx context.Context, cred *entities.BiometricCredential) error
	Get(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.BiometricCredential, error)
	UpdateSignCount(ctx context.Context, id uuid.UUID, count int64) error
}

// KYCRepository stores KYC tier records.
type KYCRepository interface {
	Create(ctx context.Context, record *entities.KYCRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.KYCRecord, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*entities.KYCRecord, error)
	Update(ctx context.Context, record *entities.KYCRecord) error
}
