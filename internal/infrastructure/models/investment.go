package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvestmentProduct struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name                string          `gorm:"type:varchar(120);not null"`
	Currency            string          `gorm:"type:varchar(10);not null"`
	InterestRate        decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	DurationDays        int             `gorm:"not null"`
	MinAmount           decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	AllowsAutoRenew     bool            `gorm:"not null;default:false"`
	PayoutFrequencyDays int             `gorm:"not null;default:0"`
	IsActive            bool            `gorm:"not null;default:true"`
	CreatedAt           time.Time
}

type Investment struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	WalletID           uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null"`
	Currency           string          `gorm:"type:varchar(10);not null"`
	Principal          decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	InterestRate       decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	DurationDays       int             `gorm:"not null"`
	StartDate          time.Time       `gorm:"not null"`
	MaturityDate       time.Time       `gorm:"not null;index"`
	ActualMaturityDate *time.Time
	Status             string          `gorm:"type:varchar(20);not null;index"`
	ExpectedReturns    decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	ActualReturns      decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	AutoRenew          bool            `gorm:"not null;default:false"`
	RenewedFromID      *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type InvestmentReturn struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvestmentID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	PayoutDate    time.Time       `gorm:"not null;index"`
	IsPaid        bool            `gorm:"not null;default:false;index"`
	PaidAt        *time.Time
	TransactionID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
}

type Portfolio struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_user_currency"`
	Currency       string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_portfolio_user_currency"`
	TotalInvested  decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	TotalReturns   decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	ActiveCount    int             `gorm:"not null;default:0"`
	MaturedCount   int             `gorm:"not null;default:0"`
	RecalculatedAt time.Time
}

type Loan struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	WalletID     uuid.UUID       `gorm:"type:uuid;not null"`
	Currency     string          `gorm:"type:varchar(10);not null"`
	Principal    decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	InterestRate decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	TermMonths   int             `gorm:"not null"`
	Status       string          `gorm:"type:varchar(20);not null;index"`
	DisbursedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LoanScheduleEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	LoanID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_schedule_loan_seq"`
	Sequence      int             `gorm:"not null;uniqueIndex:idx_schedule_loan_seq"`
	DueDate       time.Time       `gorm:"not null;index"`
	PrincipalDue  decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	InterestDue   decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0"`
	Status        string          `gorm:"type:varchar(10);not null;index"`
	PaidAt        *time.Time
	TransactionID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (LoanScheduleEntry) TableName() string {
	return "loan_schedule_entries"
}

type AutoRepayment struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	LoanID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	WalletID           uuid.UUID `gorm:"type:uuid;not null"`
	Status             string    `gorm:"type:varchar(20);not null;index"`
	DaysBeforeDue      int       `gorm:"not null;default:0"`
	MaxRetryAttempts   int       `gorm:"not null;default:3"`
	RetryIntervalHours int       `gorm:"not null;default:24"`
	RetryCount         int       `gorm:"not null;default:0"`
	NextRetryAt        *time.Time
	LastAttemptAt      *time.Time
	LastError          *string `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
