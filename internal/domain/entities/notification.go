package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// NotificationType is a domain event users can be told about.
type NotificationType string

const (
	NotificationAccountCreated     NotificationType = "ACCOUNT_CREATED"
	NotificationOTPCode            NotificationType = "OTP_CODE"
	NotificationCardIssued         NotificationType = "CARD_ISSUED"
	NotificationTransferSuccess    NotificationType = "TRANSFER_SUCCESS"
	NotificationTransferReceived   NotificationType = "TRANSFER_RECEIVED"
	NotificationDepositSuccess     NotificationType = "DEPOSIT_SUCCESS"
	NotificationWithdrawalSuccess  NotificationType = "WITHDRAWAL_SUCCESS"
	NotificationWithdrawalFailed   NotificationType = "WITHDRAWAL_FAILED"
	NotificationInvestmentMatured  NotificationType = "INVESTMENT_MATURED"
	NotificationInvestmentReturn   NotificationType = "INVESTMENT_RETURN"
	NotificationKYCApproved        NotificationType = "KYC_APPROVED"
	NotificationKYCRejected        NotificationType = "KYC_REJECTED"
	NotificationLoanApproved       NotificationType = "LOAN_APPROVED"
	NotificationLoanRepayment      NotificationType = "LOAN_REPAYMENT"
	NotificationLoanOverdue        NotificationType = "LOAN_OVERDUE"
	NotificationDisputeOpened      NotificationType = "DISPUTE_OPENED"
	NotificationDisputeUpdated     NotificationType = "DISPUTE_UPDATED"
	NotificationSecurityAlert      NotificationType = "SECURITY_ALERT"
	NotificationPaymentReceived    NotificationType = "PAYMENT_RECEIVED"
	NotificationAutoRepaySuspended NotificationType = "AUTO_REPAYMENT_SUSPENDED"
)

// Channel is a delivery route for a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AllChannels lists every channel in delivery order.
var AllChannels = []Channel{ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS}

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// Priority orders notifications in the inbox.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var defaultChannels = map[NotificationType][]Channel{
	NotificationOTPCode:           {ChannelEmail, ChannelSMS},
	NotificationAccountCreated:    {ChannelInApp, ChannelEmail},
	NotificationTransferSuccess:   {ChannelInApp, ChannelPush},
	NotificationTransferReceived:  {ChannelInApp, ChannelPush},
	NotificationDepositSuccess:    {ChannelInApp, ChannelPush},
	NotificationWithdrawalSuccess: {ChannelInApp, ChannelPush},
	NotificationWithdrawalFailed:  {ChannelInApp, ChannelPush, ChannelEmail},
	NotificationInvestmentMatured: {ChannelInApp, ChannelEmail},
	NotificationInvestmentReturn:  {ChannelInApp},
	NotificationKYCApproved:       {ChannelInApp, ChannelEmail},
	NotificationKYCRejected:       {ChannelInApp, ChannelEmail},
	NotificationLoanOverdue:       {ChannelInApp, ChannelEmail, ChannelSMS},
	NotificationSecurityAlert:     {ChannelInApp, ChannelPush, ChannelEmail},
}

// DefaultChannels returns the channel set used when a caller names none.
func DefaultChannels(t NotificationType) []Channel {
	if chans, ok := defaultChannels[t]; ok {
		return append([]Channel(nil), chans...)
	}
	return []Channel{ChannelInApp}
}

// Notification is an inbox entry plus its per-channel delivery state.
type Notification struct {
	ID                uuid.UUID              `json:"id"`
	UserID            uuid.UUID              `json:"userId"`
	Type              NotificationType       `json:"type"`
	Priority          Priority               `json:"priority"`
	Title             string                 `json:"title"`
	Body              string                 `json:"body"`
	IsRead            bool                   `json:"isRead"`
	ReadAt            null.Time              `json:"readAt"`
	ChannelsAttempted []Channel              `json:"channelsAttempted"`
	SentViaInApp      bool                   `json:"sentViaInApp"`
	SentViaPush       bool                   `json:"sentViaPush"`
	SentViaEmail      bool                   `json:"sentViaEmail"`
	SentViaSMS        bool                   `json:"sentViaSms"`
	InAppSentAt       null.Time              `json:"inAppSentAt"`
	PushSentAt        null.Time              `json:"pushSentAt"`
	EmailSentAt       null.Time              `json:"emailSentAt"`
	SMSSentAt         null.Time              `json:"smsSentAt"`
	ActionURL         null.String            `json:"actionUrl"`
	RelatedEntityType null.String            `json:"relatedEntityType"`
	RelatedEntityID   null.String            `json:"relatedEntityId"`
	ExpiresAt         null.Time              `json:"expiresAt"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
}

// SentVia reports whether delivery succeeded on the channel.
func (n *Notification) SentVia(c Channel) bool {
	switch c {
	case ChannelInApp:
		return n.SentViaInApp
	case ChannelPush:
		return n.SentViaPush
	case ChannelEmail:
		return n.SentViaEmail
	case ChannelSMS:
		return n.SentViaSMS
	}
	return false
}

// NotifyInput asks the dispatcher to tell a user about an event.
type NotifyInput struct {
	UserID            uuid.UUID
	Type              NotificationType
	Priority          Priority
	Title             string
	Body              string
	Channels          []Channel
	ActionURL         string
	RelatedEntityType string
	RelatedEntityID   string
	ExpiresAt         null.Time
	Context           map[string]interface{}
}
