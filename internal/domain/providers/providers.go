// Package providers declares the contracts external payment and messaging
// vendors are adapted to.
package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Category names a provider capability.
type Category string

const (
	CategoryDeposit    Category = "deposit"
	CategoryWithdrawal Category = "withdrawal"
	CategoryCard       Category = "card"
	CategorySMS        Category = "sms"
	CategoryEmail      Category = "email"
	CategoryPush       Category = "push"
)

// Status is the outcome a provider reports for an operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Error is a transport or protocol failure talking to a provider.
type Error struct {
	Provider string
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a provider error.
func NewError(provider string, category Category, message string, err error) *Error {
	return &Error{Provider: provider, Category: category, Message: message, Err: err}
}

// Customer is the subset of a user profile providers need.
type Customer struct {
	ID        string
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// DepositRequest asks a provider to collect funds.
type DepositRequest struct {
	Customer    Customer
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Method      string
	CallbackURL string
}

// DepositResult is the provider's answer to an initiate call.
type DepositResult struct {
	ProviderReference string
	Status            Status
	PaymentURL        string
	Metadata          map[string]interface{}
}

// VerifyResult is the provider-side status of a reference.
type VerifyResult struct {
	Status   Status
	Amount   decimal.Decimal
	Message  string
	Metadata map[string]interface{}
}

// DepositProvider collects funds into the platform.
type DepositProvider interface {
	Name() string
	InitiateDeposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	VerifyDeposit(ctx context.Context, reference string) (*VerifyResult, error)
}

// AccountDetails identifies a payout destination.
type AccountDetails struct {
	BankCode      string
	AccountNumber string
	AccountName   string
	Address       string
}

// WithdrawalRequest asks a provider to pay out.
type WithdrawalRequest struct {
	Customer  Customer
	Amount    decimal.Decimal
	Currency  string
	Reference string
	Account   AccountDetails
	Narration string
}

// WithdrawalResult is the provider's answer to a payout request.
type WithdrawalResult struct {
	ProviderReference string
	Status            Status
	Metadata          map[string]interface{}
}

// Bank is a payout destination institution.
type Bank struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Currency string `json:"currency"`
}

// WithdrawalProvider pays funds out of the platform.
type WithdrawalProvider interface {
	Name() string
	InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error)
	VerifyWithdrawal(ctx context.Context, reference string) (*VerifyResult, error)
	ListBanks(ctx context.Context, currency string) ([]Bank, error)
	VerifyAccount(ctx context.Context, accountNumber, bankCode string) (string, error)
}

// CardRequest asks a provider to issue a card.
type CardRequest struct {
	Customer Customer
	Currency string
	CardType string
	Brand    string
	Amount   decimal.Decimal
}

// CardResult carries the issued card. CardNumber and CVV must never be stored.
type CardResult struct {
	ProviderCardID string
	CardNumber     string
	Expiry         string
	CVV            string
	Brand          string
	Metadata       map[string]interface{}
}

// CardProvider issues and controls cards.
type CardProvider interface {
	Name() string
	CreateCard(ctx context.Context, req CardRequest) (*CardResult, error)
	FreezeCard(ctx context.Context, providerCardID string) error
	UnfreezeCard(ctx context.Context, providerCardID string) error
	BlockCard(ctx context.Context, providerCardID string) error
}

// SMSProvider sends text messages.
type SMSProvider interface {
	Name() string
	SendSMS(ctx context.Context, toE164, body string) (string, error)
}

// EmailMessage is a rendered or template-addressed email.
type EmailMessage struct {
	Subject      string
	Recipients   []string
	TemplateName string
	Context      map[string]interface{}
	Body         string
	Attachments  []Attachment
}

// Attachment is a file carried by an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailProvider sends email.
type EmailProvider interface {
	Name() string
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// PushProvider sends device push notifications.
type PushProvider interface {
	Name() string
	SendPush(ctx context.Context, deviceToken, title, body string, data map[string]string) (string, error)
}

// WebhookKind is what an inbound provider event means for the core.
type WebhookKind string

const (
	WebhookDeposit       WebhookKind = "deposit"
	WebhookWithdrawal    WebhookKind = "withdrawal"
	WebhookAccountCredit WebhookKind = "account_credit"
	WebhookCardSpend     WebhookKind = "card_spend"
	WebhookIgnored       WebhookKind = "ignored"
)

// WebhookEvent is a normalised provider callback.
type WebhookEvent struct {
	Provider       string
	Kind           WebhookKind
	Event          string
	Reference      string
	Status         Status
	AccountNumber  string
	Amount         decimal.Decimal
	Currency       string
	ProviderCardID string
	Merchant       string
	SenderName     string
}

// WebhookHandler authenticates and decodes a provider callback.
type WebhookHandler interface {
	Name() string
	VerifySignature(header http.Header, body []byte) error
	ParseWebhook(body []byte) (*WebhookEvent, error)
}
