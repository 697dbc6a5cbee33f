package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency struct {
	Code            string          `gorm:"type:varchar(10);primaryKey"`
	Name            string          `gorm:"type:varchar(100)"`
	Symbol          string          `gorm:"type:varchar(10)"`
	DecimalPlaces   int32           `gorm:"not null;default:2"`
	IsCrypto        bool            `gorm:"not null;default:false"`
	ExchangeRateUSD decimal.Decimal `gorm:"column:exchange_rate_usd;type:numeric(30,12);not null;default:1"`
	IsActive        bool            `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Wallet struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_wallets_user_currency_type"`
	Currency          string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_wallets_user_currency_type"`
	WalletType        string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_wallets_user_currency_type"`
	Balance           decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	AvailableBalance  decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	Status            string          `gorm:"type:varchar(20);not null;default:'active'"`
	PINHash           string          `gorm:"column:pin_hash;type:varchar(255)"`
	RequiresPIN       bool            `gorm:"column:requires_pin;not null;default:true"`
	RequiresBiometric bool            `gorm:"not null;default:false"`
	DailyLimit        decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	AccountNumber     string          `gorm:"type:char(10);not null;uniqueIndex"`
	AccountName       string          `gorm:"type:varchar(255)"`
	IsDefault         bool            `gorm:"not null;default:false"`
	LastTransactionAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Hold struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	WalletID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Status        string          `gorm:"type:varchar(20);not null;index"`
	Reason        string          `gorm:"type:varchar(255)"`
	TransactionID *uuid.UUID      `gorm:"type:uuid;index"`
	ExpiresAt     *time.Time      `gorm:"index"`
	ReleasedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
