package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Reference         string              `gorm:"type:varchar(64);not null;uniqueIndex"`
	Type              string              `gorm:"type:varchar(30);not null;index"`
	Status            string              `gorm:"type:varchar(20);not null;index"`
	Direction         string              `gorm:"type:varchar(10);not null"`
	Amount            decimal.Decimal     `gorm:"type:numeric(24,8);not null"`
	FeeAmount         decimal.Decimal     `gorm:"type:numeric(24,8);not null;default:0"`
	NetAmount         decimal.Decimal     `gorm:"type:numeric(24,8);not null"`
	Currency          string              `gorm:"type:varchar(10);not null"`
	FromUserID        *uuid.UUID          `gorm:"type:uuid;index"`
	FromWalletID      *uuid.UUID          `gorm:"type:uuid;index"`
	ToUserID          *uuid.UUID          `gorm:"type:uuid;index"`
	ToWalletID        *uuid.UUID          `gorm:"type:uuid;index"`
	FromBalanceBefore decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	FromBalanceAfter  decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	ToBalanceBefore   decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	ToBalanceAfter    decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	ExchangeRate      decimal.NullDecimal `gorm:"type:numeric(30,12)"`
	ExternalReference *string             `gorm:"type:varchar(128);uniqueIndex"`
	ProviderReference *string             `gorm:"type:varchar(128);index"`
	ProviderName      *string             `gorm:"type:varchar(30)"`
	RelatedID         *uuid.UUID          `gorm:"type:uuid;index"`
	Description       string              `gorm:"type:text"`
	Metadata          string              `gorm:"type:text"`
	FailureReason     *string             `gorm:"type:text"`
	InitiatedAt       time.Time           `gorm:"not null"`
	ProcessedAt       *time.Time
	CompletedAt       *time.Time
	FailedAt          *time.Time
	ReversedAt        *time.Time
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time
}

type TransactionFee struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID           `gorm:"type:uuid;not null;index"`
	FeeType       string              `gorm:"type:varchar(30);not null"`
	Amount        decimal.Decimal     `gorm:"type:numeric(24,8);not null"`
	Percentage    decimal.NullDecimal `gorm:"type:numeric(10,4)"`
	Description   string              `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
}

type TransactionLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TransactionID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	PreviousStatus string     `gorm:"type:varchar(20)"`
	NewStatus      string     `gorm:"type:varchar(20);not null"`
	ChangedBy      *uuid.UUID `gorm:"type:uuid"`
	Reason         string     `gorm:"type:text"`
	At             time.Time  `gorm:"not null;index"`
}

type Dispute struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type            string          `gorm:"type:varchar(30);not null"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
	Reason          string          `gorm:"type:text;not null"`
	DisputedAmount  decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	InitiatedBy     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Evidence        string          `gorm:"type:text"`
	ResolvedAt      *time.Time
	ResolvedBy      *uuid.UUID `gorm:"type:uuid"`
	ResolutionNotes *string    `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type AuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventType      string     `gorm:"type:varchar(80);not null;index"`
	Category       string     `gorm:"type:varchar(30);not null;index"`
	Severity       string     `gorm:"type:varchar(20);not null"`
	UserID         *uuid.UUID `gorm:"type:uuid;index"`
	UserEmail      *string    `gorm:"type:varchar(255)"`
	IPAddress      *string    `gorm:"type:varchar(64)"`
	UserAgent      *string    `gorm:"type:text"`
	Action         string     `gorm:"type:varchar(80);not null"`
	ResourceType   string     `gorm:"type:varchar(50);index:idx_audit_resource"`
	ResourceID     string     `gorm:"type:varchar(64);index:idx_audit_resource"`
	RequestSummary string     `gorm:"type:text"`
	OldValues      string     `gorm:"type:text"`
	NewValues      string     `gorm:"type:text"`
	RetentionDays  int        `gorm:"not null"`
	CreatedAt      time.Time  `gorm:"index"`
}
