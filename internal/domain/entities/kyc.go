package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// KYCLevel is the identity verification tier.
type KYCLevel string

const (
	KYCLevelT1 KYCLevel = "T1"
	KYCLevelT2 KYCLevel = "T2"
	KYCLevelT3 KYCLevel = "T3"
)

// Rank maps a tier onto the numeric level stored on the user.
func (l KYCLevel) Rank() int {
	switch l {
	case KYCLevelT1:
		return 1
	case KYCLevelT2:
		return 2
	case KYCLevelT3:
		return 3
	}
	return 0
}

// KYCStatus represents KYC verification status
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
	KYCStatusExpired  KYCStatus = "expired"
)

// KYCRecord is a tier verification request.
type KYCRecord struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"userId"`
	Level           KYCLevel    `json:"level"`
	Status          KYCStatus   `json:"status"`
	DocumentRefs    []string    `json:"documentRefs"`
	ReferenceNumber string      `json:"referenceNumber"`
	ReviewedBy      *uuid.UUID  `json:"reviewedBy,omitempty"`
	ReviewedAt      null.Time   `json:"reviewedAt"`
	RejectionReason null.String `json:"rejectionReason"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// KYCDailyLimit returns the daily outbound limit for a numeric user KYC level.
// Unverified users are held to the first tier.
func KYCDailyLimit(level int) decimal.Decimal {
	switch {
	case level >= 3:
		return decimal.NewFromInt(5_000_000)
	case level == 2:
		return decimal.NewFromInt(500_000)
	default:
		return decimal.NewFromInt(50_000)
	}
}

// SubmitKYCInput represents a tier request.
type SubmitKYCInput struct {
	Level        KYCLevel `json:"level" binding:"required"`
	DocumentRefs []string `json:"documentRefs"`
}
