package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "ACTIVE"
	LoanStatusPaid      LoanStatus = "PAID"
	LoanStatusDefaulted LoanStatus = "DEFAULTED"
)

// Loan is credit extended to a user and repaid on a schedule.
type Loan struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	WalletID     uuid.UUID       `json:"walletId"`
	Currency     string          `json:"currency"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interestRate"`
	TermMonths   int             `json:"termMonths"`
	Status       LoanStatus      `json:"status"`
	DisbursedAt  null.Time       `json:"disbursedAt"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ScheduleStatus is the state of one repayment instalment.
type ScheduleStatus string

const (
	ScheduleStatusDue     ScheduleStatus = "due"
	ScheduleStatusPaid    ScheduleStatus = "paid"
	ScheduleStatusOverdue ScheduleStatus = "overdue"
)

// LoanScheduleEntry is one instalment of a loan.
type LoanScheduleEntry struct {
	ID            uuid.UUID       `json:"id"`
	LoanID        uuid.UUID       `json:"loanId"`
	Sequence      int             `json:"sequence"`
	DueDate       time.Time       `json:"dueDate"`
	PrincipalDue  decimal.Decimal `json:"principalDue"`
	InterestDue   decimal.Decimal `json:"interestDue"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	Status        ScheduleStatus  `json:"status"`
	PaidAt        null.Time       `json:"paidAt"`
	TransactionID *uuid.UUID      `json:"transactionId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// AmountDue is what remains to settle the instalment.
func (e *LoanScheduleEntry) AmountDue() decimal.Decimal {
	return e.PrincipalDue.Add(e.InterestDue).Sub(e.AmountPaid)
}

// AutoRepaymentStatus is the state of an auto-repayment mandate.
type AutoRepaymentStatus string

const (
	AutoRepaymentActive    AutoRepaymentStatus = "ACTIVE"
	AutoRepaymentSuspended AutoRepaymentStatus = "SUSPENDED"
	AutoRepaymentCancelled AutoRepaymentStatus = "CANCELLED"
)

// AutoRepayment debits a wallet ahead of instalment due dates.
type AutoRepayment struct {
	ID                 uuid.UUID           `json:"id"`
	LoanID             uuid.UUID           `json:"loanId"`
	WalletID           uuid.UUID           `json:"walletId"`
	Status             AutoRepaymentStatus `json:"status"`
	DaysBeforeDue      int                 `json:"daysBeforeDue"`
	MaxRetryAttempts   int                 `json:"maxRetryAttempts"`
	RetryIntervalHours int                 `json:"retryIntervalHours"`
	RetryCount         int                 `json:"retryCount"`
	NextRetryAt        null.Time           `json:"nextRetryAt"`
	LastAttemptAt      null.Time           `json:"lastAttemptAt"`
	LastError          null.String         `json:"lastError"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// CreateLoanInput disburses a loan into a wallet.
type CreateLoanInput struct {
	UserID       uuid.UUID `json:"userId" binding:"required"`
	WalletID     uuid.UUID `json:"walletId" binding:"required"`
	Principal    string    `json:"principal" binding:"required"`
	InterestRate string    `json:"interestRate" binding:"required"`
	TermMonths   int       `json:"termMonths" binding:"required"`
}

// AutoRepaymentInput configures an auto-repayment mandate.
type AutoRepaymentInput struct {
	WalletID           uuid.UUID `json:"walletId" binding:"required"`
	DaysBeforeDue      int       `json:"daysBeforeDue"`
	MaxRetryAttempts   int       `json:"maxRetryAttempts"`
	RetryIntervalHours int       `json:"retryIntervalHours"`
}
