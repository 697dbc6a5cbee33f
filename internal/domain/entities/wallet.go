package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// WalletType distinguishes the purpose of a wallet.
type WalletType string

const (
	WalletTypeMain       WalletType = "MAIN"
	WalletTypeSavings    WalletType = "SAVINGS"
	WalletTypeInvestment WalletType = "INVESTMENT"
	WalletTypeLoan       WalletType = "LOAN"
	WalletTypeEscrow     WalletType = "ESCROW"
)

// IsValid reports whether t is a known wallet type.
func (t WalletType) IsValid() bool {
	switch t {
	case WalletTypeMain, WalletTypeSavings, WalletTypeInvestment, WalletTypeLoan, WalletTypeEscrow:
		return true
	}
	return false
}

// WalletStatus is the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive  WalletStatus = "active"
	WalletStatusFrozen  WalletStatus = "frozen"
	WalletStatusBlocked WalletStatus = "blocked"
	WalletStatusClosed  WalletStatus = "closed"
)

// Wallet represents a user's wallet in a single currency.
type Wallet struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"userId"`
	Currency          string          `json:"currency"`
	Type              WalletType      `json:"walletType"`
	Balance           decimal.Decimal `json:"balance"`
	AvailableBalance  decimal.Decimal `json:"availableBalance"`
	Status            WalletStatus    `json:"status"`
	PINHash           string          `json:"-"`
	RequiresPIN       bool            `json:"requiresPin"`
	RequiresBiometric bool            `json:"requiresBiometric"`
	DailyLimit        decimal.Decimal `json:"dailyLimit"`
	AccountNumber     string          `json:"accountNumber"`
	AccountName       string          `json:"accountName"`
	IsDefault         bool            `json:"isDefault"`
	LastTransactionAt null.Time       `json:"lastTransactionAt"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// HasPIN reports whether a PIN has been set.
func (w *Wallet) HasPIN() bool {
	return w.PINHash != ""
}

// IsActive reports whether money may move through the wallet.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// HeldAmount is the portion of the balance reserved by active holds.
func (w *Wallet) HeldAmount() decimal.Decimal {
	return w.Balance.Sub(w.AvailableBalance)
}

// HoldStatus is the lifecycle state of a hold.
type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "active"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusCaptured HoldStatus = "captured"
	HoldStatusExpired  HoldStatus = "expired"
)

// Hold reserves part of a wallet balance.
type Hold struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      uuid.UUID       `json:"walletId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        HoldStatus      `json:"status"`
	Reason        string          `json:"reason"`
	TransactionID *uuid.UUID      `json:"transactionId,omitempty"`
	ExpiresAt     null.Time       `json:"expiresAt"`
	ReleasedAt    null.Time       `json:"releasedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CreateWalletInput represents input for creating a wallet
type CreateWalletInput struct {
	Currency          string     `json:"currency" binding:"required"`
	Type              WalletType `json:"walletType"`
	AccountName       string     `json:"accountName"`
	RequiresPIN       *bool      `json:"requiresPin"`
	RequiresBiometric bool       `json:"requiresBiometric"`
	DailyLimit        string     `json:"dailyLimit"`
}

// SetPINInput sets or changes a wallet PIN.
type SetPINInput struct {
	CurrentPIN string `json:"currentPin"`
	NewPIN     string `json:"newPin" binding:"required"`
}

// WalletSecurityInput toggles the wallet's authorisation factors.
type WalletSecurityInput struct {
	RequiresPIN       *bool  `json:"requiresPin"`
	RequiresBiometric *bool  `json:"requiresBiometric"`
	CurrentPIN        string `json:"currentPin"`
}

// PlaceHoldInput reserves funds on a wallet.
type PlaceHoldInput struct {
	WalletID      uuid.UUID       `json:"walletId"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	ExpiresAt     null.Time       `json:"expiresAt"`
	TransactionID *uuid.UUID      `json:"transactionId,omitempty"`
}
