package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/money"
	"walletcore.backend/pkg/utils"
)

// disputeTransitions lists the statuses each status may move to.
var disputeTransitions = map[entities.DisputeStatus][]entities.DisputeStatus{
	entities.DisputeStatusOpened:   {entities.DisputeStatusInReview, entities.DisputeStatusResolved, entities.DisputeStatusClosed},
	entities.DisputeStatusInReview: {entities.DisputeStatusResolved, entities.DisputeStatusClosed},
}

// DisputeUsecase handles complaints against completed transactions.
type DisputeUsecase struct {
	uow         repositories.UnitOfWork
	disputeRepo repositories.DisputeRepository
	txnRepo     repositories.TransactionRepository
	notifier    Notifier
	audit       *AuditUsecase
}

// NewDisputeUsecase creates a new dispute usecase
func NewDisputeUsecase(
	uow repositories.UnitOfWork,
	disputeRepo repositories.DisputeRepository,
	txnRepo repositories.TransactionRepository,
	notifier Notifier,
	audit *AuditUsecase,
) *DisputeUsecase {
	return &DisputeUsecase{uow: uow, disputeRepo: disputeRepo, txnRepo: txnRepo, notifier: notifier, audit: audit}
}

func validDisputeType(t entities.DisputeType) bool {
	switch t {
	case entities.DisputeTypeUnauthorized, entities.DisputeTypeNotReceived, entities.DisputeTypeDuplicate,
		entities.DisputeTypeIncorrectAmount, entities.DisputeTypeOther:
		return true
	}
	return false
}

// Create opens a dispute on a completed transaction the user took part in,
// within the dispute window.
func (u *DisputeUsecase) Create(ctx context.Context, userID uuid.UUID, input *entities.CreateDisputeInput) (*entities.Dispute, error) {
	ctx = detach(ctx)
	if input.Type == "" {
		input.Type = entities.DisputeTypeOther
	}
	if !validDisputeType(input.Type) {
		return nil, domainerrors.Validation("invalid dispute type", map[string]string{"type": "unknown dispute type"})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, domainerrors.Validation("reason required", map[string]string{"reason": "required"})
	}
	txn, err := u.txnRepo.GetByID(ctx, input.TransactionID)
	if err != nil {
		return nil, err
	}
	if !txn.IsParty(userID) {
		return nil, domainerrors.NotFound("transaction not found")
	}
	if txn.Status != entities.TransactionStatusCompleted {
		return nil, domainerrors.InvalidState("only completed transactions can be disputed")
	}
	now := nowFunc()
	if !txn.CompletedAt.Valid || now.Sub(txn.CompletedAt.Time) > entities.DisputeWindow {
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "dispute.denied",
			Category:     entities.AuditCategoryDispute,
			Severity:     entities.SeverityWarning,
			ActorID:      &userID,
			Action:       "create",
			ResourceType: "transaction",
			ResourceID:   txn.ID.String(),
			Request:      map[string]interface{}{"type": string(input.Type), "reason": reason},
		})
		return nil, domainerrors.Forbidden("dispute window has closed")
	}

	amount := txn.Amount
	if strings.TrimSpace(input.Amount) != "" {
		parsed, err := money.Parse(input.Amount)
		if err != nil || !parsed.IsPositive() {
			return nil, domainerrors.Validation("invalid amount", map[string]string{"amount": "must be a positive decimal"})
		}
		if parsed.GreaterThan(txn.Amount) {
			return nil, domainerrors.Validation("amount exceeds transaction", map[string]string{"amount": "at most " + txn.Amount.String()})
		}
		amount = parsed
	}

	dispute := &entities.Dispute{
		ID:             utils.GenerateUUIDv7(),
		TransactionID:  txn.ID,
		Type:           input.Type,
		Status:         entities.DisputeStatusOpened,
		Reason:         reason,
		DisputedAmount: amount,
		InitiatedBy:    userID,
		Evidence:       []entities.Evidence{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if note := strings.TrimSpace(input.Evidence); note != "" || len(input.EvidenceRefs) > 0 {
		dispute.Evidence = append(dispute.Evidence, entities.Evidence{
			SubmittedBy: userID,
			Note:        note,
			Refs:        input.EvidenceRefs,
			SubmittedAt: now,
		})
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if _, err := u.txnRepo.GetByID(u.uow.WithLock(txCtx), txn.ID); err != nil {
			return err
		}
		open, err := u.disputeRepo.GetOpenByTransaction(txCtx, txn.ID)
		if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		if open != nil {
			return domainerrors.Conflict("transaction already has an open dispute")
		}
		if err := u.disputeRepo.Create(txCtx, dispute); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "dispute.opened",
			Category:     entities.AuditCategoryDispute,
			ActorID:      &userID,
			Action:       "create",
			ResourceType: "dispute",
			ResourceID:   dispute.ID.String(),
			NewValues: map[string]interface{}{
				"transaction_id":  txn.ID.String(),
				"type":            string(dispute.Type),
				"disputed_amount": amount.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	u.notifyDispute(ctx, dispute, entities.NotificationDisputeOpened, "Dispute opened",
		"We received your dispute for transaction "+txn.Reference+".")
	return dispute, nil
}

func (u *DisputeUsecase) notifyDispute(ctx context.Context, d *entities.Dispute, t entities.NotificationType, title, body string) {
	if u.notifier == nil {
		return
	}
	_, _ = u.notifier.Notify(ctx, &entities.NotifyInput{
		UserID:            d.InitiatedBy,
		Type:              t,
		Title:             title,
		Body:              body,
		RelatedEntityType: "dispute",
		RelatedEntityID:   d.ID.String(),
	})
}

// Get returns a dispute visible to the caller.
func (u *DisputeUsecase) Get(ctx context.Context, userID, disputeID uuid.UUID, staff bool) (*entities.Dispute, error) {
	d, err := u.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !staff && d.InitiatedBy != userID {
		return nil, domainerrors.NotFound("dispute not found")
	}
	return d, nil
}

// List returns disputes the user opened.
func (u *DisputeUsecase) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]*entities.Dispute, int64, error) {
	_, limit, offset := pageOffset(page, limit)
	return u.disputeRepo.ListByUser(ctx, userID, limit, offset)
}

// AddEvidence appends a submission to an undecided dispute.
func (u *DisputeUsecase) AddEvidence(ctx context.Context, userID, disputeID uuid.UUID, staff bool, input *entities.AddEvidenceInput) (*entities.Dispute, error) {
	note := strings.TrimSpace(input.Note)
	if note == "" && len(input.Refs) == 0 {
		return nil, domainerrors.Validation("evidence required", map[string]string{"note": "note or refs required"})
	}
	var dispute *entities.Dispute
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		d, err := u.disputeRepo.GetByID(u.uow.WithLock(txCtx), disputeID)
		if err != nil {
			return err
		}
		if !staff && d.InitiatedBy != userID {
			return domainerrors.NotFound("dispute not found")
		}
		if d.Status.IsTerminal() {
			return domainerrors.InvalidState("dispute is " + string(d.Status))
		}
		now := nowFunc()
		d.Evidence = append(d.Evidence, entities.Evidence{SubmittedBy: userID, Note: note, Refs: input.Refs, SubmittedAt: now})
		d.UpdatedAt = now
		if err := u.disputeRepo.Update(txCtx, d); err != nil {
			return err
		}
		dispute = d
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "dispute.evidence_added",
			Category:     entities.AuditCategoryDispute,
			ActorID:      &userID,
			Action:       "update",
			ResourceType: "dispute",
			ResourceID:   d.ID.String(),
			NewValues:    map[string]interface{}{"evidence_count": len(d.Evidence)},
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// UpdateStatus applies a staff decision. Terminal statuses record the
// resolver and notes.
func (u *DisputeUsecase) UpdateStatus(ctx context.Context, staffID, disputeID uuid.UUID, input *entities.UpdateDisputeStatusInput) (*entities.Dispute, error) {
	var dispute *entities.Dispute
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		d, err := u.disputeRepo.GetByID(u.uow.WithLock(txCtx), disputeID)
		if err != nil {
			return err
		}
		allowed := false
		for _, next := range disputeTransitions[d.Status] {
			if next == input.Status {
				allowed = true
				break
			}
		}
		if !allowed {
			return domainerrors.Wrapf(domainerrors.InvalidState("invalid dispute transition"), "%s to %s", d.Status, input.Status)
		}
		old := d.Status
		now := nowFunc()
		d.Status = input.Status
		d.UpdatedAt = now
		if input.Status.IsTerminal() {
			d.ResolvedAt = null.TimeFrom(now)
			d.ResolvedBy = &staffID
			d.ResolutionNotes = null.StringFrom(strings.TrimSpace(input.Notes))
		}
		if err := u.disputeRepo.Update(txCtx, d); err != nil {
			return err
		}
		dispute = d
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "dispute.status_changed",
			Category:     entities.AuditCategoryDispute,
			ActorID:      &staffID,
			Action:       "update",
			ResourceType: "dispute",
			ResourceID:   d.ID.String(),
			OldValues:    map[string]interface{}{"status": string(old)},
			NewValues:    map[string]interface{}{"status": string(d.Status), "notes": input.Notes},
		})
	})
	if err != nil {
		return nil, err
	}
	u.notifyDispute(ctx, dispute, entities.NotificationDisputeUpdated, "Dispute updated",
		"Your dispute is now "+strings.ReplaceAll(string(dispute.Status), "_", " ")+".")
	return dispute, nil
}
