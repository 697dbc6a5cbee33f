package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// PaymentLinkStatus is the lifecycle state of a payment link.
type PaymentLinkStatus string

const (
	PaymentLinkActive   PaymentLinkStatus = "active"
	PaymentLinkExpired  PaymentLinkStatus = "expired"
	PaymentLinkDisabled PaymentLinkStatus = "disabled"
)

// PaymentLink is a shareable vendor collection link.
type PaymentLink struct {
	ID          uuid.UUID           `json:"id"`
	OwnerID     uuid.UUID           `json:"ownerId"`
	WalletID    uuid.UUID           `json:"walletId"`
	Slug        string              `json:"slug"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency"`
	Status      PaymentLinkStatus   `json:"status"`
	ExpiresAt   null.Time           `json:"expiresAt"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceExpired   InvoiceStatus = "expired"
)

// Invoice is a vendor bill addressed to a customer.
type Invoice struct {
	ID                uuid.UUID       `json:"id"`
	OwnerID           uuid.UUID       `json:"ownerId"`
	WalletID          uuid.UUID       `json:"walletId"`
	Number            string          `json:"number"`
	CustomerEmail     string          `json:"customerEmail"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	DueDate           time.Time       `json:"dueDate"`
	Status            InvoiceStatus   `json:"status"`
	PaidTransactionID *uuid.UUID      `json:"paidTransactionId,omitempty"`
	PaidAt            null.Time       `json:"paidAt"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// CreatePaymentLinkInput creates a payment link.
type CreatePaymentLinkInput struct {
	WalletID    uuid.UUID `json:"walletId" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	ExpiresAt   null.Time `json:"expiresAt"`
}

// CreateInvoiceInput creates an invoice.
type CreateInvoiceInput struct {
	WalletID      uuid.UUID `json:"walletId" binding:"required"`
	CustomerEmail string    `json:"customerEmail" binding:"required"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount" binding:"required"`
	DueDate       time.Time `json:"dueDate" binding:"required"`
}

// PayInput settles a payment link or invoice from the payer's wallet.
type PayInput struct {
	Slug          string    `json:"slug"`
	InvoiceNumber string    `json:"invoiceNumber"`
	WalletID      uuid.UUID `json:"walletId" binding:"required"`
	Amount        string    `json:"amount"`
	PIN           string    `json:"pin"`
	IP            string    `json:"-"`
}
