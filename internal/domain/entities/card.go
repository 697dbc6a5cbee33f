package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of an issued card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "active"
	CardStatusFrozen  CardStatus = "frozen"
	CardStatusBlocked CardStatus = "blocked"
)

// Card is a virtual or physical card issued by a provider against a wallet.
type Card struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"userId"`
	WalletID       uuid.UUID       `json:"walletId"`
	Provider       string          `json:"provider"`
	ProviderCardID string          `json:"providerCardId"`
	MaskedPAN      string          `json:"maskedPan"`
	Last4          string          `json:"last4"`
	Expiry         string          `json:"expiry"`
	Brand          string          `json:"brand"`
	CardType       string          `json:"cardType"`
	Currency       string          `json:"currency"`
	Status         CardStatus      `json:"status"`
	MonthlyLimit   decimal.Decimal `json:"monthlyLimit"`
	SpentThisMonth decimal.Decimal `json:"spentThisMonth"`
	PeriodStart    time.Time       `json:"periodStart"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RollPeriod resets the monthly spend when now is in a later calendar month.
func (c *Card) RollPeriod(now time.Time) {
	start := MonthStart(now)
	if c.PeriodStart.Before(start) {
		c.PeriodStart = start
		c.SpentThisMonth = decimal.Zero
	}
}

// CreateCardInput requests a new card.
type CreateCardInput struct {
	WalletID     uuid.UUID `json:"walletId" binding:"required"`
	CardType     string    `json:"cardType"`
	Brand        string    `json:"brand"`
	MonthlyLimit string    `json:"monthlyLimit"`
}

// UpdateCardInput changes card settings.
type UpdateCardInput struct {
	MonthlyLimit string `json:"monthlyLimit" binding:"required"`
}

// FundCardInput records a card funding.
type FundCardInput struct {
	Amount string `json:"amount" binding:"required"`
}

// CardSpendInput is a provider-reported card authorisation.
type CardSpendInput struct {
	ProviderCardID    string          `json:"providerCardId"`
	Amount            decimal.Decimal `json:"amount"`
	Merchant          string          `json:"merchant"`
	ExternalReference string          `json:"externalReference"`
}
