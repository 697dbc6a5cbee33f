package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

// KYCUsecase moves users between verification tiers.
type KYCUsecase struct {
	uow      repositories.UnitOfWork
	kycRepo  repositories.KYCRepository
	userRepo repositories.UserRepository
	notifier Notifier
	audit    *AuditUsecase
}

// NewKYCUsecase creates a new KYC usecase
func NewKYCUsecase(
	uow repositories.UnitOfWork,
	kycRepo repositories.KYCRepository,
	userRepo repositories.UserRepository,
	notifier Notifier,
	audit *AuditUsecase,
) *KYCUsecase {
	return &KYCUsecase{uow: uow, kycRepo: kycRepo, userRepo: userRepo, notifier: notifier, audit: audit}
}

// Submit requests a tier above the user's current one. Only one request may
// be pending at a time.
func (u *KYCUsecase) Submit(ctx context.Context, userID uuid.UUID, input *entities.SubmitKYCInput) (*entities.KYCRecord, error) {
	rank := input.Level.Rank()
	if rank == 0 {
		return nil, domainerrors.Validation("invalid level", map[string]string{"level": "T1, T2 or T3"})
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rank <= user.KYCLevel {
		return nil, domainerrors.Conflict("tier already granted")
	}
	refs := make([]string, 0, len(input.DocumentRefs))
	for _, ref := range input.DocumentRefs {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	if rank > 1 && len(refs) == 0 {
		return nil, domainerrors.Validation("documents required", map[string]string{"documentRefs": "at least one document"})
	}

	now := nowFunc()
	record := &entities.KYCRecord{
		ID:              utils.GenerateUUIDv7(),
		UserID:          user.ID,
		Level:           input.Level,
		Status:          entities.KYCStatusPending,
		DocumentRefs:    refs,
		ReferenceNumber: newReference(refPrefixKYC),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		existing, err := u.kycRepo.GetActiveByUser(u.uow.WithLock(txCtx), user.ID)
		if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Status == entities.KYCStatusPending {
			return domainerrors.Conflict("a verification request is already pending")
		}
		if err := u.kycRepo.Create(txCtx, record); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "kyc.submitted",
			Category:     entities.AuditCategoryKYC,
			ActorID:      &user.ID,
			ActorEmail:   user.Contact(),
			Action:       "create",
			ResourceType: "kyc",
			ResourceID:   record.ID.String(),
			NewValues:    map[string]interface{}{"level": string(record.Level), "documents": len(refs)},
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns the user's current pending or approved record.
func (u *KYCUsecase) Get(ctx context.Context, userID uuid.UUID) (*entities.KYCRecord, error) {
	return u.kycRepo.GetActiveByUser(ctx, userID)
}

func (u *KYCUsecase) review(ctx context.Context, recordID uuid.UUID, reviewer uuid.UUID, approve bool, reason string) (*entities.KYCRecord, error) {
	var (
		record *entities.KYCRecord
		user   *entities.User
	)
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		r, err := u.kycRepo.GetByID(u.uow.WithLock(txCtx), recordID)
		if err != nil {
			return err
		}
		if r.Status != entities.KYCStatusPending {
			return domainerrors.InvalidState("record is " + string(r.Status))
		}
		usr, err := u.userRepo.GetByID(u.uow.WithLock(txCtx), r.UserID)
		if err != nil {
			return err
		}
		now := nowFunc()
		old := map[string]interface{}{"status": string(r.Status), "kyc_level": usr.KYCLevel}
		r.ReviewedBy = &reviewer
		r.ReviewedAt = null.TimeFrom(now)
		event := "kyc.rejected"
		if approve {
			r.Status = entities.KYCStatusApproved
			if rank := r.Level.Rank(); rank > usr.KYCLevel {
				usr.KYCLevel = rank
			}
			usr.UpdatedAt = now
			if err := u.userRepo.Update(txCtx, usr); err != nil {
				return err
			}
			event = "kyc.approved"
		} else {
			r.Status = entities.KYCStatusRejected
			r.RejectionReason = null.StringFrom(reason)
		}
		if err := u.kycRepo.Update(txCtx, r); err != nil {
			return err
		}
		record, user = r, usr
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    event,
			Category:     entities.AuditCategoryKYC,
			ActorID:      &reviewer,
			Action:       "review",
			ResourceType: "kyc",
			ResourceID:   r.ID.String(),
			OldValues:    old,
			NewValues:    map[string]interface{}{"status": string(r.Status), "kyc_level": usr.KYCLevel, "reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}

	in := &entities.NotifyInput{
		UserID:            user.ID,
		Type:              entities.NotificationKYCApproved,
		Title:             "Verification approved",
		Body:              "Your account is now verified at tier " + string(record.Level) + ".",
		RelatedEntityType: "kyc",
		RelatedEntityID:   record.ID.String(),
	}
	if !approve {
		in.Type = entities.NotificationKYCRejected
		in.Title = "Verification rejected"
		in.Body = "Your tier " + string(record.Level) + " request was rejected: " + reason
	}
	if _, err := u.notifier.Notify(ctx, in); err != nil {
		logger.Warn(ctx, "KYC notification failed", zap.String("kyc_id", record.ID.String()), zap.Error(err))
	}
	return record, nil
}

// Approve grants the requested tier.
func (u *KYCUsecase) Approve(ctx context.Context, recordID, reviewer uuid.UUID) (*entities.KYCRecord, error) {
	return u.review(ctx, recordID, reviewer, true, "")
}

// Reject closes the request with a reason.
func (u *KYCUsecase) Reject(ctx context.Context, recordID, reviewer uuid.UUID, reason string) (*entities.KYCRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domainerrors.Validation("reason required", map[string]string{"reason": "required"})
	}
	return u.review(ctx, recordID, reviewer, false, reason)
}
