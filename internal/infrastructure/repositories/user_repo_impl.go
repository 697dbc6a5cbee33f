package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

// UserRepository implements user data operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	m := userToModel(user)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	user.CreatedAt, user.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var m models.User
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return userToEntity(&m), nil
}

// GetByEmail gets a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var m models.User
	if err := GetDB(ctx, r.db).Where("email = ?", strings.ToLower(email)).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return userToEntity(&m), nil
}

// GetByPhone gets a user by phone
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*entities.User, error) {
	var m models.User
	if err := GetDB(ctx, r.db).Where("phone = ?", phone).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return userToEntity(&m), nil
}

// Update saves every mutable user field
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	user.UpdatedAt = time.Now()
	m := userToModel(user)
	res := GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m)
	return affected(res)
}

func userToModel(u *entities.User) *models.User {
	var email *string
	if u.Email.Valid {
		lower := strings.ToLower(u.Email.String)
		email = &lower
	}
	return &models.User{
		ID:                  u.ID,
		Email:               email,
		Phone:               u.Phone.Ptr(),
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		PasswordHash:        u.PasswordHash,
		Role:                string(u.Role),
		IsVerified:          u.IsVerified,
		IsActive:            u.IsActive,
		IsStaff:             u.IsStaff,
		AuthProvider:        string(u.AuthProvider),
		KYCLevel:            u.KYCLevel,
		PushEnabled:         u.PushEnabled,
		InAppEnabled:        u.InAppEnabled,
		EmailEnabled:        u.EmailEnabled,
		SMSEnabled:          u.SMSEnabled,
		DeviceToken:         u.DeviceToken.Ptr(),
		TrustToken:          u.TrustToken.Ptr(),
		TrustTokenExpiresAt: u.TrustTokenExpiresAt.Ptr(),
		LastLoginAt:         u.LastLoginAt.Ptr(),
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func userToEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:                  m.ID,
		Email:               null.StringFromPtr(m.Email),
		Phone:               null.StringFromPtr(m.Phone),
		FirstName:           m.FirstName,
		LastName:            m.LastName,
		PasswordHash:        m.PasswordHash,
		Role:                entities.UserRole(m.Role),
		IsVerified:          m.IsVerified,
		IsActive:            m.IsActive,
		IsStaff:             m.IsStaff,
		AuthProvider:        entities.AuthProvider(m.AuthProvider),
		KYCLevel:            m.KYCLevel,
		PushEnabled:         m.PushEnabled,
		InAppEnabled:        m.InAppEnabled,
		EmailEnabled:        m.EmailEnabled,
		SMSEnabled:          m.SMSEnabled,
		DeviceToken:         null.StringFromPtr(m.DeviceToken),
		TrustToken:          null.StringFromPtr(m.TrustToken),
		TrustTokenExpiresAt: null.TimeFromPtr(m.TrustTokenExpiresAt),
		LastLoginAt:         null.TimeFromPtr(m.LastLoginAt),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// TrustTokenRepository stores device trust tokens.
type TrustTokenRepository struct {
	db *gorm.DB
}

func NewTrustTokenRepository(db *gorm.DB) *TrustTokenRepository {
	return &TrustTokenRepository{db: db}
}

func (r *TrustTokenRepository) Create(ctx context.Context, t *entities.TrustToken) error {
	m := &models.TrustToken{
		ID:         t.ID,
		UserID:     t.UserID,
		DeviceID:   t.DeviceID,
		TokenHash:  t.TokenHash,
		DeviceInfo: t.DeviceInfo,
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
	}
	return mapError(GetDB(ctx, r.db).Create(m).Error)
}

// GetActive returns the newest unrevoked, unexpired token for the device.
func (r *TrustTokenRepository) GetActive(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) (*entities.TrustToken, error) {
	var m models.TrustToken
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND device_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, deviceID, now).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &entities.TrustToken{
		ID:         m.ID,
		UserID:     m.UserID,
		DeviceID:   m.DeviceID,
		TokenHash:  m.TokenHash,
		DeviceInfo: m.DeviceInfo,
		ExpiresAt:  m.ExpiresAt,
		RevokedAt:  null.TimeFromPtr(m.RevokedAt),
		LastUsedAt: null.TimeFromPtr(m.LastUsedAt),
		CreatedAt:  m.CreatedAt,
	}, nil
}

func (r *TrustTokenRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return affected(GetDB(ctx, r.db).Model(&models.TrustToken{}).Where("id = ?", id).Update("last_used_at", at))
}

// Revoke revokes every live token of the device.
func (r *TrustTokenRepository) Revoke(ctx context.Context, userID uuid.UUID, deviceID string, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&models.TrustToken{}).
		Where("user_id = ? AND device_id = ? AND revoked_at IS NULL", userID, deviceID).
		Update("revoked_at", at)
	return res.RowsAffected, mapError(res.Error)
}

// BiometricCredentialRepository stores device public keys.
type BiometricCredentialRepository struct {
	db *gorm.DB
}

func NewBiometricCredentialRepository(db *gorm.DB) *BiometricCredentialRepository {
	return &BiometricCredentialRepository{db: db}
}

// Upsert replaces the credential registered for (user, device).
func (r *BiometricCredentialRepository) Upsert(ctx context.Context, c *entities.BiometricCredential) error {
	db := GetDB(ctx, r.db)
	var existing models.BiometricCredential
	err := db.Where("user_id = ? AND device_id = ?", c.UserID, c.DeviceID).First(&existing).Error
	if err == nil {
		c.ID = existing.ID
		return affected(db.Model(&existing).Updates(map[string]interface{}{
			"credential_id":  c.CredentialID,
			"public_key_jwk": c.PublicKeyJWK,
			"sign_count":     c.SignCount,
			"updated_at":     time.Now(),
		}))
	}
	if mapped := mapError(err); mapped != nil && !isNotFound(mapped) {
		return mapped
	}
	m := &models.BiometricCredential{
		ID:           c.ID,
		UserID:       c.UserID,
		DeviceID:     c.DeviceID,
		CredentialID: c.CredentialID,
		PublicKeyJWK: c.PublicKeyJWK,
		SignCount:    c.SignCount,
	}
	return mapError(db.Create(m).Error)
}

func (r *BiometricCredentialRepository) Get(ctx context.Context, userID uuid.UUID, deviceID string) (*entities.BiometricCredential, error) {
	var m models.BiometricCredential
	if err := GetDB(ctx, r.db).Where("user_id = ? AND device_id = ?", userID, deviceID).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return &entities.BiometricCredential{
		ID:           m.ID,
		UserID:       m.UserID,
		DeviceID:     m.DeviceID,
		CredentialID: m.CredentialID,
		PublicKeyJWK: m.PublicKeyJWK,
		SignCount:    m.SignCount,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func (r *BiometricCredentialRepository) UpdateSignCount(ctx context.Context, id uuid.UUID, count int64) error {
	return affected(GetDB(ctx, r.db).Model(&models.BiometricCredential{}).Where("id = ?", id).Update("sign_count", count))
}

// KYCRepository stores KYC records.
type KYCRepository struct {
	db *gorm.DB
}

func NewKYCRepository(db *gorm.DB) *KYCRepository {
	return &KYCRepository{db: db}
}

func (r *KYCRepository) Create(ctx context.Context, k *entities.KYCRecord) error {
	return mapError(GetDB(ctx, r.db).Create(kycToModel(k)).Error)
}

func (r *KYCRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.KYCRecord, error) {
	var m models.KYCRecord
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return kycToEntity(&m), nil
}

// GetActiveByUser returns the user's non-rejected, non-expired record.
func (r *KYCRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*entities.KYCRecord, error) {
	var m models.KYCRecord
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND status IN ?", userID, []string{string(entities.KYCStatusPending), string(entities.KYCStatusApproved)}).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, mapError(err)
	}
	return kycToEntity(&m), nil
}

func (r *KYCRepository) Update(ctx context.Context, k *entities.KYCRecord) error {
	k.UpdatedAt = time.Now()
	m := kycToModel(k)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func kycToModel(k *entities.KYCRecord) *models.KYCRecord {
	return &models.KYCRecord{
		ID:              k.ID,
		UserID:          k.UserID,
		Level:           string(k.Level),
		Status:          string(k.Status),
		DocumentRefs:    encodeJSON(k.DocumentRefs),
		ReferenceNumber: k.ReferenceNumber,
		ReviewedBy:      k.ReviewedBy,
		ReviewedAt:      k.ReviewedAt.Ptr(),
		RejectionReason: k.RejectionReason.Ptr(),
		CreatedAt:       k.CreatedAt,
		UpdatedAt:       k.UpdatedAt,
	}
}

func kycToEntity(m *models.KYCRecord) *entities.KYCRecord {
	return &entities.KYCRecord{
		ID:              m.ID,
		UserID:          m.UserID,
		Level:           entities.KYCLevel(m.Level),
		Status:          entities.KYCStatus(m.Status),
		DocumentRefs:    decodeStrings(m.DocumentRefs),
		ReferenceNumber: m.ReferenceNumber,
		ReviewedBy:      m.ReviewedBy,
		ReviewedAt:      null.TimeFromPtr(m.ReviewedAt),
		RejectionReason: null.StringFromPtr(m.RejectionReason),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
