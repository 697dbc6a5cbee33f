package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Card struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	WalletID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Provider       string          `gorm:"type:varchar(30);not null"`
	ProviderCardID string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	MaskedPAN      string          `gorm:"column:masked_pan;type:varchar(32)"`
	Last4          string          `gorm:"column:last4;type:char(4)"`
	Expiry         string          `gorm:"type:varchar(7)"`
	Brand          string          `gorm:"type:varchar(20)"`
	CardType       string          `gorm:"type:varchar(20)"`
	Currency       string          `gorm:"type:varchar(10);not null"`
	Status         string          `gorm:"type:varchar(20);not null"`
	MonthlyLimit   decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	SpentThisMonth decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	PeriodStart    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PaymentLink struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	OwnerID     uuid.UUID           `gorm:"type:uuid;not null;index"`
	WalletID    uuid.UUID           `gorm:"type:uuid;not null"`
	Slug        string              `gorm:"type:varchar(64);not null;uniqueIndex"`
	Title       string              `gorm:"type:varchar(255);not null"`
	Description string              `gorm:"type:text"`
	Amount      decimal.NullDecimal `gorm:"type:numeric(24,8)"`
	Currency    string              `gorm:"type:varchar(10);not null"`
	Status      string              `gorm:"type:varchar(20);not null;index"`
	ExpiresAt   *time.Time          `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Invoice struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	WalletID          uuid.UUID       `gorm:"type:uuid;not null"`
	Number            string          `gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerEmail     string          `gorm:"type:varchar(255);not null"`
	Description       string          `gorm:"type:text"`
	Amount            decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Currency          string          `gorm:"type:varchar(10);not null"`
	DueDate           time.Time       `gorm:"not null;index"`
	Status            string          `gorm:"type:varchar(20);not null;index"`
	PaidTransactionID *uuid.UUID      `gorm:"type:uuid"`
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
