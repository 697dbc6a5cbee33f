package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/metrics"
	"walletcore.backend/pkg/utils"
)

func newTransaction(txType entities.TransactionType, direction entities.TransactionDirection, currency, prefix string) *entities.Transaction {
	now := nowFunc()
	return &entities.Transaction{
		ID:          utils.GenerateUUIDv7(),
		Reference:   newReference(prefix),
		Type:        txType,
		Status:      entities.TransactionStatusPending,
		Direction:   direction,
		FeeAmount:   decimal.Zero,
		Currency:    currency,
		InitiatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func cloneTransaction(t *entities.Transaction) *entities.Transaction {
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Fees = nil
	return &cp
}

// transition moves txn through the state machine, stamps the entry time of
// the new state and appends a log row. The caller persists txn.
func (u *TransactionUsecase) transition(ctx context.Context, txn *entities.Transaction, to entities.TransactionStatus, actor *uuid.UUID, reason string) error {
	if !entities.CanTransition(txn.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, txn.Status, to)
	}
	now := nowFunc()
	from := txn.Status
	txn.Status = to
	switch to {
	case entities.TransactionStatusProcessing:
		txn.ProcessedAt = null.TimeFrom(now)
	case entities.TransactionStatusCompleted:
		txn.CompletedAt = null.TimeFrom(now)
	case entities.TransactionStatusFailed:
		txn.FailedAt = null.TimeFrom(now)
		txn.FailureReason = null.StringFrom(reason)
	case entities.TransactionStatusReversed:
		txn.ReversedAt = null.TimeFrom(now)
	}
	return u.txnRepo.CreateLog(ctx, &entities.TransactionLog{
		ID:             utils.GenerateUUIDv7(),
		TransactionID:  txn.ID,
		PreviousStatus: from,
		NewStatus:      to,
		ChangedBy:      actor,
		Reason:         reason,
		At:             now,
	})
}

// complete runs PENDING -> PROCESSING -> COMPLETED for flows that settle in one unit.
func (u *TransactionUsecase) complete(ctx context.Context, txn *entities.Transaction, actor *uuid.UUID) error {
	if txn.Status == entities.TransactionStatusPending {
		if err := u.transition(ctx, txn, entities.TransactionStatusProcessing, actor, ""); err != nil {
			return err
		}
	}
	return u.transition(ctx, txn, entities.TransactionStatusCompleted, actor, "")
}

func (u *TransactionUsecase) addFee(ctx context.Context, txn *entities.Transaction, feeType string, amount decimal.Decimal, pct decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	fee := entities.TransactionFee{
		ID:            utils.GenerateUUIDv7(),
		TransactionID: txn.ID,
		FeeType:       feeType,
		Amount:        amount,
		Description:   feeType + " fee",
		CreatedAt:     nowFunc(),
	}
	if pct.IsPositive() {
		fee.Percentage = nullDecimal(pct)
	}
	if err := u.txnRepo.CreateFee(ctx, &fee); err != nil {
		return err
	}
	txn.Fees = append(txn.Fees, fee)
	return nil
}

// recordFailure stores the pre-transaction draft as FAILED in its own commit
// after the money-moving unit rolled back.
func (u *TransactionUsecase) recordFailure(ctx context.Context, draft *entities.Transaction, cause error) *entities.Transaction {
	failed := cloneTransaction(draft)
	reason := failureReason(cause)
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.txnRepo.Create(txCtx, failed); err != nil {
			return err
		}
		if err := u.transition(txCtx, failed, entities.TransactionStatusFailed, nil, reason); err != nil {
			return err
		}
		return u.txnRepo.Update(txCtx, failed)
	})
	if err != nil {
		logger.Error(ctx, "Failed to record failed transaction",
			zap.String("reference", draft.Reference),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil
	}
	observeTransaction(failed)
	logger.Warn(ctx, "Transaction failed",
		zap.String("reference", failed.Reference),
		zap.String("type", string(failed.Type)),
		zap.String("reason", reason),
	)
	return failed
}

func failureReason(err error) string {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

// providerFailure maps an adapter error onto the provider_error kind.
func providerFailure(err error) error {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var pErr *providers.Error
	if errors.As(err, &pErr) {
		return domainerrors.ProviderError(pErr.Error(), pErr)
	}
	if errors.Is(err, domainerrors.ErrProviderFailure) || errors.Is(err, domainerrors.ErrUnsupportedCurrency) {
		return err
	}
	return domainerrors.ProviderError(err.Error(), err)
}

func observeTransaction(txn *entities.Transaction) {
	metrics.Transactions.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
}

func (u *TransactionUsecase) notify(ctx context.Context, input *entities.NotifyInput) {
	if u.notifier == nil {
		return
	}
	if _, err := u.notifier.Notify(ctx, input); err != nil {
		logger.Warn(ctx, "Notification dispatch failed",
			zap.String("type", string(input.Type)),
			zap.String("user_id", input.UserID.String()),
			zap.Error(err),
		)
	}
}

// checkDailyLimit enforces the lower of the KYC tier limit and the wallet's
// own limit against today's outbound volume.
func (u *TransactionUsecase) checkDailyLimit(ctx context.Context, wallet *entities.Wallet, amount decimal.Decimal) error {
	user, err := u.userRepo.GetByID(ctx, wallet.UserID)
	if err != nil {
		return err
	}
	limit := entities.KYCDailyLimit(user.KYCLevel)
	if wallet.DailyLimit.IsPositive() && wallet.DailyLimit.LessThan(limit) {
		limit = wallet.DailyLimit
	}
	spent, err := u.txnRepo.SumOutbound(ctx, wallet.ID, startOfDay(nowFunc()))
	if err != nil {
		return err
	}
	if spent.Add(amount).GreaterThan(limit) {
		return fmt.Errorf("%w: daily limit of %s %s exceeded", domainerrors.ErrLimitExceeded, limit.String(), wallet.Currency)
	}
	return nil
}

// authorize checks the wallet PIN when the wallet requires one or the caller supplied one.
func (u *TransactionUsecase) authorize(ctx context.Context, wallet *entities.Wallet, pin, ip string) error {
	if !wallet.RequiresPIN && pin == "" {
		return nil
	}
	if pin == "" {
		if !wallet.HasPIN() {
			return domainerrors.ErrPINNotSet
		}
		return fmt.Errorf("%w: pin required", domainerrors.ErrInvalidPIN)
	}
	return u.ledger.VerifyPIN(ctx, wallet, pin, ip)
}

// lockPair locks two wallets in ascending id order and returns them as (a, b).
func (u *TransactionUsecase) lockPair(ctx context.Context, a, b uuid.UUID) (*entities.Wallet, *entities.Wallet, error) {
	lockCtx := u.uow.WithLock(ctx)
	first, second := orderedIDs(a, b)
	w1, err := u.walletRepo.GetByID(lockCtx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := u.walletRepo.GetByID(lockCtx, second)
	if err != nil {
		return nil, nil, err
	}
	if w1.ID == a {
		return w1, w2, nil
	}
	return w2, w1, nil
}

// replay returns the transaction already stored under an external reference.
func (u *TransactionUsecase) replay(ctx context.Context, externalRef string) (*entities.Transaction, error) {
	if externalRef == "" {
		return nil, nil
	}
	existing, err := u.txnRepo.GetByExternalReference(ctx, externalRef)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

// findByAnyReference resolves our reference, the external reference or the
// provider's reference.
func (u *TransactionUsecase) findByAnyReference(ctx context.Context, reference string) (*entities.Transaction, error) {
	txn, err := u.txnRepo.GetByReference(ctx, reference)
	if err == nil || !errors.Is(err, domainerrors.ErrNotFound) {
		return txn, err
	}
	txn, err = u.txnRepo.GetByExternalReference(ctx, reference)
	if err == nil || !errors.Is(err, domainerrors.ErrNotFound) {
		return txn, err
	}
	txn, err = u.txnRepo.GetByProviderReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("transaction not found")
		}
		return nil, err
	}
	return txn, nil
}

func (u *TransactionUsecase) auditTxn(ctx context.Context, txn *entities.Transaction, walletID uuid.UUID, actor *uuid.UUID, event string, before, after decimal.NullDecimal) error {
	return u.audit.Record(ctx, AuditEntry{
		EventType:    event,
		Category:     entities.AuditCategoryTransaction,
		ActorID:      actor,
		Action:       "update",
		ResourceType: "wallet",
		ResourceID:   walletID.String(),
		Request: map[string]interface{}{
			"transaction_id": txn.ID.String(),
			"reference":      txn.Reference,
			"type":           string(txn.Type),
		},
		OldValues: map[string]interface{}{"balance": before.Decimal.String()},
		NewValues: map[string]interface{}{"balance": after.Decimal.String(), "status": string(txn.Status)},
	})
}
