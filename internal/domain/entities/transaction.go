package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// TransactionType is the business kind of a money movement.
type TransactionType string

const (
	TransactionTypeTransfer         TransactionType = "TRANSFER"
	TransactionTypeDeposit          TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal       TransactionType = "WITHDRAWAL"
	TransactionTypeCardFunding      TransactionType = "CARD_FUNDING"
	TransactionTypeCardSpend        TransactionType = "CARD_SPEND"
	TransactionTypeRefund           TransactionType = "REFUND"
	TransactionTypeReversal         TransactionType = "REVERSAL"
	TransactionTypeInvestment       TransactionType = "INVESTMENT"
	TransactionTypeInvestmentPayout TransactionType = "INVESTMENT_PAYOUT"
	TransactionTypeLoanDisbursement TransactionType = "LOAN_DISBURSEMENT"
	TransactionTypeLoanRepayment    TransactionType = "LOAN_REPAYMENT"
	TransactionTypePayment          TransactionType = "PAYMENT"
)

// TransactionStatus is a state of the transaction state machine.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusReversed   TransactionStatus = "REVERSED"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusFailed},
	TransactionStatusProcessing: {TransactionStatusCompleted, TransactionStatusFailed},
	TransactionStatusCompleted:  {TransactionStatusReversed},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transactionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition is expected.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusReversed:
		return true
	}
	return false
}

// TransactionDirection tells which side of the ledger the owner sees.
type TransactionDirection string

const (
	DirectionDebit    TransactionDirection = "DEBIT"
	DirectionCredit   TransactionDirection = "CREDIT"
	DirectionInternal TransactionDirection = "INTERNAL"
)

// Transaction is a single money movement and its audit trail.
type Transaction struct {
	ID                uuid.UUID              `json:"id"`
	Reference         string                 `json:"reference"`
	Type              TransactionType        `json:"type"`
	Status            TransactionStatus      `json:"status"`
	Direction         TransactionDirection   `json:"direction"`
	Amount            decimal.Decimal        `json:"amount"`
	FeeAmount         decimal.Decimal        `json:"feeAmount"`
	NetAmount         decimal.Decimal        `json:"netAmount"`
	Currency          string                 `json:"currency"`
	FromUserID        *uuid.UUID             `json:"fromUserId,omitempty"`
	FromWalletID      *uuid.UUID             `json:"fromWalletId,omitempty"`
	ToUserID          *uuid.UUID             `json:"toUserId,omitempty"`
	ToWalletID        *uuid.UUID             `json:"toWalletId,omitempty"`
	FromBalanceBefore decimal.NullDecimal    `json:"fromBalanceBefore"`
	FromBalanceAfter  decimal.NullDecimal    `json:"fromBalanceAfter"`
	ToBalanceBefore   decimal.NullDecimal    `json:"toBalanceBefore"`
	ToBalanceAfter    decimal.NullDecimal    `json:"toBalanceAfter"`
	ExchangeRate      decimal.NullDecimal    `json:"exchangeRate"`
	ExternalReference null.String            `json:"externalReference"`
	ProviderReference null.String            `json:"providerReference"`
	ProviderName      null.String            `json:"providerName"`
	RelatedID         *uuid.UUID             `json:"relatedId,omitempty"`
	Description       string                 `json:"description"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	FailureReason     null.String            `json:"failureReason"`
	InitiatedAt       time.Time              `json:"initiatedAt"`
	ProcessedAt       null.Time              `json:"processedAt"`
	CompletedAt       null.Time              `json:"completedAt"`
	FailedAt          null.Time              `json:"failedAt"`
	ReversedAt        null.Time              `json:"reversedAt"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`

	Fees []TransactionFee `json:"fees,omitempty"`
}

// IsParty reports whether the user is sender or recipient.
func (t *Transaction) IsParty(userID uuid.UUID) bool {
	return (t.FromUserID != nil && *t.FromUserID == userID) ||
		(t.ToUserID != nil && *t.ToUserID == userID)
}

// SetMeta appends a metadata key.
func (t *Transaction) SetMeta(key string, value interface{}) {
	if t.Metadata == nil {
		t.Metadata = map[string]interface{}{}
	}
	t.Metadata[key] = value
}

// TransactionFee is one fee component charged on a transaction.
type TransactionFee struct {
	ID            uuid.UUID           `json:"id"`
	TransactionID uuid.UUID           `json:"transactionId"`
	FeeType       string              `json:"feeType"`
	Amount        decimal.Decimal     `json:"amount"`
	Percentage    decimal.NullDecimal `json:"percentage"`
	Description   string              `json:"description"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// TransactionLog is an append-only record of a status change.
type TransactionLog struct {
	ID             uuid.UUID         `json:"id"`
	TransactionID  uuid.UUID         `json:"transactionId"`
	PreviousStatus TransactionStatus `json:"previousStatus"`
	NewStatus      TransactionStatus `json:"newStatus"`
	ChangedBy      *uuid.UUID        `json:"changedBy,omitempty"`
	Reason         string            `json:"reason"`
	At             time.Time         `json:"at"`
}

// TransferInput moves funds between two wallets.
type TransferInput struct {
	FromWalletID    uuid.UUID       `json:"-"`
	ToWalletID      *uuid.UUID      `json:"toWalletId"`
	ToAccountNumber string          `json:"toAccountNumber"`
	Amount          string          `json:"amount" binding:"required"`
	Fee             string          `json:"fee"`
	Description     string          `json:"description"`
	PIN             string          `json:"pin"`
	IdempotencyKey  string          `json:"idempotencyKey"`
	IP              string          `json:"-"`
	Type            TransactionType `json:"-"`
	RelatedID       *uuid.UUID      `json:"-"`
}

// DepositInput starts a provider-funded deposit.
type DepositInput struct {
	WalletID          uuid.UUID `json:"-"`
	Amount            string    `json:"amount" binding:"required"`
	Method            string    `json:"method"`
	CallbackURL       string    `json:"callbackUrl"`
	ExternalReference string    `json:"externalReference"`
}

// DepositResult carries the pending transaction and where to pay.
type DepositResult struct {
	Transaction *Transaction `json:"transaction"`
	PaymentURL  string       `json:"paymentUrl,omitempty"`
}

// WithdrawalInput pays out of a wallet to a bank account or crypto address.
type WithdrawalInput struct {
	WalletID       uuid.UUID `json:"-"`
	Amount         string    `json:"amount" binding:"required"`
	BankCode       string    `json:"bankCode"`
	AccountNumber  string    `json:"accountNumber"`
	AccountName    string    `json:"accountName"`
	Address        string    `json:"address"`
	PIN            string    `json:"pin"`
	IdempotencyKey string    `json:"idempotencyKey"`
	IP             string    `json:"-"`
}

// AccountCreditInput is an inbound transfer addressed to an account number.
type AccountCreditInput struct {
	AccountNumber     string          `json:"accountNumber"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ExternalReference string          `json:"externalReference"`
	Provider          string          `json:"provider"`
	SenderName        string          `json:"senderName"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	UserID   *uuid.UUID
	WalletID *uuid.UUID
	Type     TransactionType
	Status   TransactionStatus
}
