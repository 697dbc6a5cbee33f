package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// AuditCategory groups audit events.
type AuditCategory string

const (
	AuditCategoryAuth         AuditCategory = "auth"
	AuditCategoryWallet       AuditCategory = "wallet"
	AuditCategoryLedger       AuditCategory = "ledger"
	AuditCategoryTransaction  AuditCategory = "transaction"
	AuditCategoryDispute      AuditCategory = "dispute"
	AuditCategoryCard         AuditCategory = "card"
	AuditCategoryKYC          AuditCategory = "kyc"
	AuditCategoryInvestment   AuditCategory = "investment"
	AuditCategoryLoan         AuditCategory = "loan"
	AuditCategoryPayment      AuditCategory = "payment"
	AuditCategoryNotification AuditCategory = "notification"
	AuditCategorySystem       AuditCategory = "system"
)

// AuditSeverity grades an audit event.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// DefaultAuditRetentionDays is how long entries are kept unless overridden.
const DefaultAuditRetentionDays = 2555

// AuditLog is an immutable record of a state-changing action.
type AuditLog struct {
	ID             uuid.UUID              `json:"id"`
	EventType      string                 `json:"eventType"`
	Category       AuditCategory          `json:"category"`
	Severity       AuditSeverity          `json:"severity"`
	UserID         *uuid.UUID             `json:"userId,omitempty"`
	UserEmail      null.String            `json:"userEmail"`
	IPAddress      null.String            `json:"ipAddress"`
	UserAgent      null.String            `json:"userAgent"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resourceType"`
	ResourceID     string                 `json:"resourceId"`
	RequestSummary map[string]interface{} `json:"requestSummary,omitempty"`
	OldValues      map[string]interface{} `json:"oldValues,omitempty"`
	NewValues      map[string]interface{} `json:"newValues,omitempty"`
	RetentionDays  int                    `json:"retentionDays"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	UserID       *uuid.UUID
	Category     AuditCategory
	ResourceType string
	ResourceID   string
}
