package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// InvestmentStatus is the lifecycle state of an investment.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "ACTIVE"
	InvestmentStatusMatured   InvestmentStatus = "MATURED"
	InvestmentStatusRenewed   InvestmentStatus = "RENEWED"
	InvestmentStatusCancelled InvestmentStatus = "CANCELLED"
)

// InvestmentProduct is an offer users can invest into.
type InvestmentProduct struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	Currency            string          `json:"currency"`
	InterestRate        decimal.Decimal `json:"interestRate"`
	DurationDays        int             `json:"durationDays"`
	MinAmount           decimal.Decimal `json:"minAmount"`
	AllowsAutoRenew     bool            `json:"allowsAutoRenew"`
	PayoutFrequencyDays int             `json:"payoutFrequencyDays"`
	IsActive            bool            `json:"isActive"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// Investment is principal locked into a product for a fixed term.
type Investment struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             uuid.UUID        `json:"userId"`
	WalletID           uuid.UUID        `json:"walletId"`
	ProductID          uuid.UUID        `json:"productId"`
	Currency           string           `json:"currency"`
	Principal          decimal.Decimal  `json:"principal"`
	InterestRate       decimal.Decimal  `json:"interestRate"`
	DurationDays       int              `json:"durationDays"`
	StartDate          time.Time        `json:"startDate"`
	MaturityDate       time.Time        `json:"maturityDate"`
	ActualMaturityDate null.Time        `json:"actualMaturityDate"`
	Status             InvestmentStatus `json:"status"`
	ExpectedReturns    decimal.Decimal  `json:"expectedReturns"`
	ActualReturns      decimal.Decimal  `json:"actualReturns"`
	AutoRenew          bool             `json:"autoRenew"`
	RenewedFromID      *uuid.UUID       `json:"renewedFromId,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// InvestmentReturn is one scheduled interest payout.
type InvestmentReturn struct {
	ID            uuid.UUID       `json:"id"`
	InvestmentID  uuid.UUID       `json:"investmentId"`
	Amount        decimal.Decimal `json:"amount"`
	PayoutDate    time.Time       `json:"payoutDate"`
	IsPaid        bool            `json:"isPaid"`
	PaidAt        null.Time       `json:"paidAt"`
	TransactionID *uuid.UUID      `json:"transactionId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Portfolio aggregates a user's investments in one currency.
type Portfolio struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"userId"`
	Currency       string          `json:"currency"`
	TotalInvested  decimal.Decimal `json:"totalInvested"`
	TotalReturns   decimal.Decimal `json:"totalReturns"`
	ActiveCount    int             `json:"activeCount"`
	MaturedCount   int             `json:"maturedCount"`
	RecalculatedAt time.Time       `json:"recalculatedAt"`
}

// OpenInvestmentInput opens an investment from a product.
type OpenInvestmentInput struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	WalletID  uuid.UUID `json:"walletId" binding:"required"`
	Amount    string    `json:"amount" binding:"required"`
	AutoRenew bool      `json:"autoRenew"`
	PIN       string    `json:"pin"`
	IP        string    `json:"-"`
}
