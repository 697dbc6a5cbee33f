package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email               *string   `gorm:"type:varchar(255);uniqueIndex"`
	Phone               *string   `gorm:"type:varchar(32);uniqueIndex"`
	FirstName           string    `gorm:"type:varchar(100)"`
	LastName            string    `gorm:"type:varchar(100)"`
	PasswordHash        string    `gorm:"type:varchar(255)"`
	Role                string    `gorm:"type:varchar(20);not null;default:'client'"`
	IsVerified          bool      `gorm:"not null;default:false"`
	IsActive            bool      `gorm:"not null;default:true"`
	IsStaff             bool      `gorm:"not null;default:false"`
	AuthProvider        string    `gorm:"type:varchar(20);not null;default:'local'"`
	KYCLevel            int       `gorm:"column:kyc_level;not null;default:0"`
	PushEnabled         bool      `gorm:"not null;default:true"`
	InAppEnabled        bool      `gorm:"not null;default:true"`
	EmailEnabled        bool      `gorm:"not null;default:true"`
	SMSEnabled          bool      `gorm:"column:sms_enabled;not null;default:true"`
	DeviceToken         *string   `gorm:"type:varchar(512)"`
	TrustToken          *string   `gorm:"type:varchar(255)"`
	TrustTokenExpiresAt *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type TrustToken struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_trust_tokens_user_device"`
	DeviceID   string    `gorm:"type:varchar(255);not null;index:idx_trust_tokens_user_device"`
	TokenHash  string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	DeviceInfo string    `gorm:"type:text"`
	ExpiresAt  time.Time `gorm:"not null"`
	RevokedAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

type BiometricCredential struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_biometric_user_device"`
	DeviceID     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_biometric_user_device"`
	CredentialID string    `gorm:"type:varchar(255);not null"`
	PublicKeyJWK string    `gorm:"column:public_key_jwk;type:text;not null"`
	SignCount    int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type KYCRecord struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	Level           string     `gorm:"type:varchar(4);not null"`
	Status          string     `gorm:"type:varchar(20);not null;index"`
	DocumentRefs    string     `gorm:"type:text"`
	ReferenceNumber string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	ReviewedBy      *uuid.UUID `gorm:"type:uuid"`
	ReviewedAt      *time.Time
	RejectionReason *string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (KYCRecord) TableName() string {
	return "kyc_records"
}
