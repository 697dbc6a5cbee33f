package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// DisputeWindow is how long after completion a transaction may be disputed.
const DisputeWindow = 30 * 24 * time.Hour

// DisputeType classifies the complaint.
type DisputeType string

const (
	DisputeTypeUnauthorized    DisputeType = "unauthorized"
	DisputeTypeNotReceived     DisputeType = "not_received"
	DisputeTypeDuplicate       DisputeType = "duplicate"
	DisputeTypeIncorrectAmount DisputeType = "incorrect_amount"
	DisputeTypeOther           DisputeType = "other"
)

// DisputeStatus is the lifecycle state of a dispute.
type DisputeStatus string

const (
	DisputeStatusOpened   DisputeStatus = "opened"
	DisputeStatusInReview DisputeStatus = "in_review"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusClosed   DisputeStatus = "closed"
)

// IsOpen reports whether the dispute still blocks a new one.
func (s DisputeStatus) IsOpen() bool {
	return s == DisputeStatusOpened || s == DisputeStatusInReview
}

// IsTerminal reports whether the dispute has been decided.
func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

// Evidence is one submission attached to a dispute.
type Evidence struct {
	SubmittedBy uuid.UUID `json:"submittedBy"`
	Note        string    `json:"note"`
	Refs        []string  `json:"refs,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Dispute is a complaint raised against a completed transaction.
type Dispute struct {
	ID              uuid.UUID       `json:"id"`
	TransactionID   uuid.UUID       `json:"transactionId"`
	Type            DisputeType     `json:"type"`
	Status          DisputeStatus   `json:"status"`
	Reason          string          `json:"reason"`
	DisputedAmount  decimal.Decimal `json:"disputedAmount"`
	InitiatedBy     uuid.UUID       `json:"initiatedBy"`
	Evidence        []Evidence      `json:"evidence"`
	ResolvedAt      null.Time       `json:"resolvedAt"`
	ResolvedBy      *uuid.UUID      `json:"resolvedBy,omitempty"`
	ResolutionNotes null.String     `json:"resolutionNotes"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateDisputeInput opens a dispute.
type CreateDisputeInput struct {
	TransactionID uuid.UUID   `json:"transactionId" binding:"required"`
	Type          DisputeType `json:"type"`
	Reason        string      `json:"reason" binding:"required"`
	Amount        string      `json:"amount"`
	Evidence      string      `json:"evidence"`
	EvidenceRefs  []string    `json:"evidenceRefs"`
}

// AddEvidenceInput appends to a dispute.
type AddEvidenceInput struct {
	Note string   `json:"note" binding:"required"`
	Refs []string `json:"refs"`
}

// UpdateDisputeStatusInput is a staff decision.
type UpdateDisputeStatusInput struct {
	Status DisputeStatus `json:"status" binding:"required"`
	Notes  string        `json:"notes"`
}
