package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// TrustToken is a long-lived device credential issued after biometric enrollment.
type TrustToken struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	DeviceID   string    `json:"deviceId"`
	TokenHash  string    `json:"-"`
	DeviceInfo string    `json:"deviceInfo"`
	ExpiresAt  time.Time `json:"expiresAt"`
	RevokedAt  null.Time `json:"revokedAt"`
	LastUsedAt null.Time `json:"lastUsedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsUsable reports whether the token may still authenticate.
func (t *TrustToken) IsUsable(now time.Time) bool {
	return !t.RevokedAt.Valid && now.Before(t.ExpiresAt)
}

// BiometricCredential is a device public key registered for a user.
type BiometricCredential struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	DeviceID     string    `json:"deviceId"`
	CredentialID string    `json:"credentialId"`
	PublicKeyJWK string    `json:"-"`
	SignCount    int64     `json:"signCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BiometricOptions is the server challenge for a ceremony.
type BiometricOptions struct {
	Challenge string    `json:"challenge"`
	UserID    uuid.UUID `json:"userId"`
	DeviceID  string    `json:"deviceId"`
	Timeout   int       `json:"timeoutSeconds"`
}

// BiometricRegisterInput completes enrollment.
type BiometricRegisterInput struct {
	DeviceID     string `json:"deviceId" binding:"required"`
	DeviceInfo   string `json:"deviceInfo"`
	CredentialID string `json:"credentialId" binding:"required"`
	PublicKeyJWK string `json:"publicKey" binding:"required"`
	Assertion    string `json:"assertion" binding:"required"`
}

// BiometricLoginInput completes a biometric login.
type BiometricLoginInput struct {
	UserID     uuid.UUID `json:"userId" binding:"required"`
	DeviceID   string    `json:"deviceId" binding:"required"`
	TrustToken string    `json:"trustToken" binding:"required"`
	Assertion  string    `json:"assertion" binding:"required"`
}
