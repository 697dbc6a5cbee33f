package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/internal/infrastructure/identity"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

const trustTokenBytes = 32

// BiometricUsecase enrolls device keys and signs users in with a trust token
// plus a signed challenge.
type BiometricUsecase struct {
	uow        repositories.UnitOfWork
	userRepo   repositories.UserRepository
	credRepo   repositories.BiometricCredentialRepository
	tokenRepo  repositories.TrustTokenRepository
	challenges ChallengeService
	auth       *AuthUsecase
	notifier   Notifier
	audit      *AuditUsecase
	trustTTL   time.Duration
}

// NewBiometricUsecase creates a new biometric usecase
func NewBiometricUsecase(
	uow repositories.UnitOfWork,
	userRepo repositories.UserRepository,
	credRepo repositories.BiometricCredentialRepository,
	tokenRepo repositories.TrustTokenRepository,
	challenges ChallengeService,
	auth *AuthUsecase,
	notifier Notifier,
	audit *AuditUsecase,
	trustTTL time.Duration,
) *BiometricUsecase {
	if trustTTL <= 0 {
		trustTTL = DefaultTrustTokenTTL
	}
	return &BiometricUsecase{
		uow:        uow,
		userRepo:   userRepo,
		credRepo:   credRepo,
		tokenRepo:  tokenRepo,
		challenges: challenges,
		auth:       auth,
		notifier:   notifier,
		audit:      audit,
		trustTTL:   trustTTL,
	}
}

func hashTrustToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (u *BiometricUsecase) options(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.BiometricOptions, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, domainerrors.Validation("device id required", map[string]string{"deviceId": "required"})
	}
	challenge, err := u.challenges.Issue(ctx, userID.String(), deviceID)
	if err != nil {
		return nil, err
	}
	return &entities.BiometricOptions{
		Challenge: challenge,
		UserID:    userID,
		DeviceID:  deviceID,
		Timeout:   int(u.challenges.TTL().Seconds()),
	}, nil
}

// RegisterOptions issues an enrollment challenge for an authenticated user.
func (u *BiometricUsecase) RegisterOptions(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.BiometricOptions, error) {
	if _, err := u.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return u.options(ctx, userID, deviceID)
}

// RegisterVerify checks the signed challenge against the submitted key,
// stores the key and returns a fresh trust token for the device. Any token
// previously issued to the device is revoked.
func (u *BiometricUsecase) RegisterVerify(ctx context.Context, userID uuid.UUID, input *entities.BiometricRegisterInput, ip string) (*entities.AuthResponse, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	key, err := identity.ParsePublicJWK(input.PublicKeyJWK)
	if err != nil {
		return nil, domainerrors.Validation("invalid public key", map[string]string{"publicKey": err.Error()})
	}
	challenge, err := u.challenges.Consume(ctx, user.ID.String(), input.DeviceID)
	if err != nil {
		return nil, err
	}
	assertion, err := identity.VerifyAssertion(key, input.Assertion, challenge, input.DeviceID, 0)
	if err != nil {
		return nil, domainerrors.Unauthorized("biometric verification failed")
	}

	token, err := crypto.GenerateRandomToken(trustTokenBytes)
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	expires := now.Add(u.trustTTL)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.credRepo.Upsert(txCtx, &entities.BiometricCredential{
			ID:           utils.GenerateUUIDv7(),
			UserID:       user.ID,
			DeviceID:     input.DeviceID,
			CredentialID: input.CredentialID,
			PublicKeyJWK: input.PublicKeyJWK,
			SignCount:    assertion.SignCount,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return err
		}
		if _, err := u.tokenRepo.Revoke(txCtx, user.ID, input.DeviceID, now); err != nil {
			return err
		}
		if err := u.tokenRepo.Create(txCtx, &entities.TrustToken{
			ID:         utils.GenerateUUIDv7(),
			UserID:     user.ID,
			DeviceID:   input.DeviceID,
			TokenHash:  hashTrustToken(token),
			DeviceInfo: input.DeviceInfo,
			ExpiresAt:  expires,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		user.TrustToken = null.StringFrom(hashTrustToken(token))
		user.TrustTokenExpiresAt = null.TimeFrom(expires)
		user.UpdatedAt = now
		if err := u.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "auth.biometric_registered",
			Category:     entities.AuditCategoryAuth,
			ActorID:      &user.ID,
			ActorEmail:   user.Contact(),
			IP:           ip,
			Action:       "create",
			ResourceType: "biometric_credential",
			ResourceID:   input.DeviceID,
			NewValues:    map[string]interface{}{"device_id": input.DeviceID, "device_info": input.DeviceInfo},
		})
	})
	if err != nil {
		return nil, err
	}

	if _, err := u.notifier.Notify(ctx, &entities.NotifyInput{
		UserID:   user.ID,
		Type:     entities.NotificationSecurityAlert,
		Priority: entities.PriorityHigh,
		Title:    "New device enrolled",
		Body:     "Biometric sign-in was enabled on a device. If this was not you, revoke it now.",
	}); err != nil {
		logger.Warn(ctx, "Security alert not sent", zap.Error(err))
	}
	return &entities.AuthResponse{TrustToken: token, ExpiresAt: expires, User: user}, nil
}

// LoginOptions issues a login challenge. The trust token must be live for
// the device before a challenge is handed out.
func (u *BiometricUsecase) LoginOptions(ctx context.Context, userID uuid.UUID, deviceID, trustToken string) (*entities.BiometricOptions, error) {
	if _, err := u.activeToken(ctx, userID, deviceID, trustToken); err != nil {
		return nil, err
	}
	return u.options(ctx, userID, deviceID)
}

func (u *BiometricUsecase) activeToken(ctx context.Context, userID uuid.UUID, deviceID, trustToken string) (*entities.TrustToken, error) {
	token, err := u.tokenRepo.GetActive(ctx, userID, deviceID, nowFunc())
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized("device not trusted")
		}
		return nil, err
	}
	if !token.IsUsable(nowFunc()) || !crypto.ConstantTimeEqual(token.TokenHash, hashTrustToken(trustToken)) {
		return nil, domainerrors.Unauthorized("device not trusted")
	}
	return token, nil
}

// LoginVerify authenticates with trust token and signed challenge and
// issues a token pair.
func (u *BiometricUsecase) LoginVerify(ctx context.Context, input *entities.BiometricLoginInput, ip string) (*entities.AuthResponse, error) {
	token, err := u.activeToken(ctx, input.UserID, input.DeviceID, input.TrustToken)
	if err != nil {
		return nil, err
	}
	cred, err := u.credRepo.Get(ctx, input.UserID, input.DeviceID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized("device not enrolled")
		}
		return nil, err
	}
	key, err := identity.ParsePublicJWK(cred.PublicKeyJWK)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	challenge, err := u.challenges.Consume(ctx, input.UserID.String(), input.DeviceID)
	if err != nil {
		return nil, err
	}
	assertion, err := identity.VerifyAssertion(key, input.Assertion, challenge, input.DeviceID, cred.SignCount)
	if err != nil {
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "auth.biometric_failed",
			Category:     entities.AuditCategoryAuth,
			Severity:     entities.SeverityWarning,
			ActorID:      &input.UserID,
			IP:           ip,
			Action:       "login",
			ResourceType: "biometric_credential",
			ResourceID:   input.DeviceID,
		})
		return nil, domainerrors.Unauthorized("biometric verification failed")
	}

	user, err := u.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domainerrors.Forbidden("account disabled")
	}
	if err := u.credRepo.UpdateSignCount(ctx, cred.ID, assertion.SignCount); err != nil {
		return nil, err
	}
	if err := u.tokenRepo.Touch(ctx, token.ID, nowFunc()); err != nil {
		logger.Warn(ctx, "Trust token touch failed", zap.Error(err))
	}
	return u.auth.issue(ctx, user, ip, "auth.biometric_login")
}

// RevokeDevice invalidates the device's trust token.
func (u *BiometricUsecase) RevokeDevice(ctx context.Context, userID uuid.UUID, deviceID, ip string) error {
	n, err := u.tokenRepo.Revoke(ctx, userID, deviceID, nowFunc())
	if err != nil {
		return err
	}
	if n == 0 {
		return domainerrors.NotFound("no trusted token for device")
	}
	u.audit.RecordSafe(ctx, AuditEntry{
		EventType:    "auth.device_revoked",
		Category:     entities.AuditCategoryAuth,
		Severity:     entities.SeverityWarning,
		ActorID:      &userID,
		IP:           ip,
		Action:       "revoke",
		ResourceType: "trust_token",
		ResourceID:   deviceID,
	})
	return nil
}
