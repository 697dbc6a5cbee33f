package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

// LedgerUsecase owns wallet balances. Nothing else writes balance or
// available_balance.
type LedgerUsecase struct {
	uow            repositories.UnitOfWork
	walletRepo     repositories.WalletRepository
	holdRepo       repositories.HoldRepository
	currencyRepo   repositories.CurrencyRepository
	pinLimiter     AttemptLimiter
	audit          *AuditUsecase
	accountNumbers func(seed string) (string, error)
}

// NewLedgerUsecase creates a new ledger usecase
func NewLedgerUsecase(
	uow repositories.UnitOfWork,
	walletRepo repositories.WalletRepository,
	holdRepo repositories.HoldRepository,
	currencyRepo repositories.CurrencyRepository,
	pinLimiter AttemptLimiter,
	audit *AuditUsecase,
) *LedgerUsecase {
	return &LedgerUsecase{
		uow:          uow,
		walletRepo:   walletRepo,
		holdRepo:     holdRepo,
		currencyRepo: currencyRepo,
		pinLimiter:   pinLimiter,
		audit:        audit,
		accountNumbers: func(string) (string, error) {
			return crypto.GenerateNumericCode(accountNumberDigits)
		},
	}
}

// WithAccountNumberSource replaces the random account number generator, e.g.
// with the internal provider's deterministic one.
func (u *LedgerUsecase) WithAccountNumberSource(fn func(seed string) string) *LedgerUsecase {
	u.accountNumbers = func(seed string) (string, error) { return fn(seed), nil }
	return u
}

// Currency returns an active currency or a validation error.
func (u *LedgerUsecase) Currency(ctx context.Context, code string) (*entities.Currency, error) {
	cur, err := u.currencyRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Validation("unsupported currency", map[string]string{"currency": "unknown currency code"})
		}
		return nil, err
	}
	if !cur.IsActive {
		return nil, domainerrors.Validation("unsupported currency", map[string]string{"currency": "currency is not active"})
	}
	return cur, nil
}

// CreateWallet opens a wallet with a zero balance and a fresh account number.
func (u *LedgerUsecase) CreateWallet(ctx context.Context, userID uuid.UUID, input *entities.CreateWalletInput) (*entities.Wallet, error) {
	cur, err := u.Currency(ctx, input.Currency)
	if err != nil {
		return nil, err
	}

	walletType := input.Type
	if walletType == "" {
		walletType = entities.WalletTypeMain
	}
	if !walletType.IsValid() {
		return nil, domainerrors.Validation("invalid wallet type", map[string]string{"walletType": "unknown wallet type"})
	}

	_, err = u.walletRepo.GetByUserCurrencyType(ctx, userID, cur.Code, walletType)
	if err == nil {
		return nil, domainerrors.Conflict("wallet already exists for this currency and type")
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	dailyLimit, err := parseOptionalAmount(input.DailyLimit, cur, "dailyLimit")
	if err != nil {
		return nil, err
	}

	count, err := u.walletRepo.CountByUserCurrency(ctx, userID, cur.Code)
	if err != nil {
		return nil, err
	}

	requiresPIN := true
	if input.RequiresPIN != nil {
		requiresPIN = *input.RequiresPIN
	}

	id := utils.GenerateUUIDv7()
	accountNumber, err := u.newAccountNumber(ctx, id)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	wallet := &entities.Wallet{
		ID:                id,
		UserID:            userID,
		Currency:          cur.Code,
		Type:              walletType,
		Balance:           decimal.Zero,
		AvailableBalance:  decimal.Zero,
		Status:            entities.WalletStatusActive,
		RequiresPIN:       requiresPIN,
		RequiresBiometric: input.RequiresBiometric,
		DailyLimit:        dailyLimit,
		AccountNumber:     accountNumber,
		AccountName:       strings.TrimSpace(input.AccountName),
		IsDefault:         count == 0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.walletRepo.Create(txCtx, wallet); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "wallet.created",
			Category:     entities.AuditCategoryWallet,
			ActorID:      &userID,
			Action:       "create",
			ResourceType: "wallet",
			ResourceID:   wallet.ID.String(),
			NewValues: map[string]interface{}{
				"currency":       wallet.Currency,
				"wallet_type":    string(wallet.Type),
				"account_number": wallet.AccountNumber,
				"is_default":     wallet.IsDefault,
			},
		})
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("wallet already exists for this currency and type")
		}
		return nil, err
	}
	return wallet, nil
}

func (u *LedgerUsecase) newAccountNumber(ctx context.Context, walletID uuid.UUID) (string, error) {
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		seed := walletID.String()
		if attempt > 0 {
			seed = describe("%s:%d", seed, attempt)
		}
		number, err := u.accountNumbers(seed)
		if err != nil {
			return "", err
		}
		exists, err := u.walletRepo.AccountNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		logger.Warn(ctx, "Account number collision, retrying", zap.Int("attempt", attempt+1))
	}
	return "", domainerrors.InternalServerError("could not allocate a unique account number")
}

// GetWallet returns a wallet owned by userID.
func (u *LedgerUsecase) GetWallet(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error) {
	wallet, err := u.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.UserID != userID {
		return nil, domainerrors.NotFound("wallet not found")
	}
	return wallet, nil
}

// ListWallets lists the user's wallets.
func (u *LedgerUsecase) ListWallets(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error) {
	return u.walletRepo.ListByUser(ctx, userID)
}

// SetPIN sets the wallet PIN, or changes it when one is already set.
func (u *LedgerUsecase) SetPIN(ctx context.Context, userID, walletID uuid.UUID, input *entities.SetPINInput, ip string) error {
	wallet, err := u.GetWallet(ctx, userID, walletID)
	if err != nil {
		return err
	}
	if err := crypto.ValidatePIN(input.NewPIN); err != nil {
		return domainerrors.Validation("invalid pin", map[string]string{"newPin": err.Error()})
	}

	event := "wallet.pin_set"
	if wallet.HasPIN() {
		if input.CurrentPIN == "" {
			return domainerrors.Validation("current pin required", map[string]string{"currentPin": "required to change the pin"})
		}
		if err := u.VerifyPIN(ctx, wallet, input.CurrentPIN, ip); err != nil {
			return err
		}
		event = "wallet.pin_changed"
	}

	hash, err := crypto.HashPIN(input.NewPIN)
	if err != nil {
		return err
	}
	wallet.PINHash = hash

	return u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.walletRepo.Update(txCtx, wallet); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    event,
			Category:     entities.AuditCategoryWallet,
			ActorID:      &userID,
			IP:           ip,
			Action:       "update",
			ResourceType: "wallet",
			ResourceID:   wallet.ID.String(),
			Request:      map[string]interface{}{"new_pin": input.NewPIN, "current_pin": input.CurrentPIN},
		})
	})
}

// VerifyPIN checks pin against the wallet. Failures count against the
// client IP; once banned every attempt is rate limited until the window ends.
func (u *LedgerUsecase) VerifyPIN(ctx context.Context, wallet *entities.Wallet, pin, ip string) error {
	if !wallet.HasPIN() {
		return domainerrors.ErrPINNotSet
	}
	subject := ip
	if subject == "" {
		subject = wallet.UserID.String()
	}
	if u.pinLimiter != nil {
		blocked, retryAfter, err := u.pinLimiter.Blocked(ctx, subject)
		if err != nil {
			logger.Warn(ctx, "PIN limiter unavailable", zap.Error(err))
		} else if blocked {
			return domainerrors.RateLimited("too many invalid pin attempts", retryAfter)
		}
	}
	if !crypto.CheckPIN(pin, wallet.PINHash) {
		if u.pinLimiter != nil {
			if _, err := u.pinLimiter.RecordFailure(ctx, subject); err != nil {
				logger.Warn(ctx, "Failed to record pin failure", zap.Error(err))
			}
		}
		return domainerrors.ErrInvalidPIN
	}
	if u.pinLimiter != nil {
		_ = u.pinLimiter.Reset(ctx, subject)
	}
	return nil
}

// SetSecurity toggles the wallet's authorisation factors. Turning a required
// factor off needs the current PIN.
func (u *LedgerUsecase) SetSecurity(ctx context.Context, userID, walletID uuid.UUID, input *entities.WalletSecurityInput, ip string) (*entities.Wallet, error) {
	wallet, err := u.GetWallet(ctx, userID, walletID)
	if err != nil {
		return nil, err
	}
	old := map[string]interface{}{
		"requires_pin":       wallet.RequiresPIN,
		"requires_biometric": wallet.RequiresBiometric,
	}

	disabling := (input.RequiresPIN != nil && !*input.RequiresPIN && wallet.RequiresPIN) ||
		(input.RequiresBiometric != nil && !*input.RequiresBiometric && wallet.RequiresBiometric)
	if disabling {
		if input.CurrentPIN == "" {
			return nil, domainerrors.Validation("current pin required", map[string]string{"currentPin": "required to disable a security factor"})
		}
		if err := u.VerifyPIN(ctx, wallet, input.CurrentPIN, ip); err != nil {
			return nil, err
		}
	}
	if input.RequiresPIN != nil {
		wallet.RequiresPIN = *input.RequiresPIN
	}
	if input.RequiresBiometric != nil {
		wallet.RequiresBiometric = *input.RequiresBiometric
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.walletRepo.Update(txCtx, wallet); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "wallet.security_updated",
			Category:     entities.AuditCategoryWallet,
			ActorID:      &userID,
			IP:           ip,
			Action:       "update",
			ResourceType: "wallet",
			ResourceID:   wallet.ID.String(),
			OldValues:    old,
			NewValues: map[string]interface{}{
				"requires_pin":       wallet.RequiresPIN,
				"requires_biometric": wallet.RequiresBiometric,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Credit adds amount to a wallet the caller has locked inside a unit of work.
// It returns the balance before and after.
func (u *LedgerUsecase) Credit(ctx context.Context, wallet *entities.Wallet, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !wallet.IsActive() {
		return decimal.Zero, decimal.Zero, domainerrors.InvalidState("wallet is " + string(wallet.Status))
	}
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, domainerrors.ErrInvalidInput
	}
	before := wallet.Balance
	wallet.Balance = wallet.Balance.Add(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Add(amount)
	wallet.LastTransactionAt = null.TimeFrom(nowFunc())
	if err := u.walletRepo.Update(ctx, wallet); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return before, wallet.Balance, nil
}

// Debit removes amount from a locked wallet's available funds.
func (u *LedgerUsecase) Debit(ctx context.Context, wallet *entities.Wallet, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !wallet.IsActive() {
		return decimal.Zero, decimal.Zero, domainerrors.InvalidState("wallet is " + string(wallet.Status))
	}
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, domainerrors.ErrInvalidInput
	}
	if wallet.AvailableBalance.LessThan(amount) {
		return decimal.Zero, decimal.Zero, domainerrors.ErrInsufficientBalance
	}
	before := wallet.Balance
	wallet.Balance = wallet.Balance.Sub(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(amount)
	wallet.LastTransactionAt = null.TimeFrom(nowFunc())
	if err := u.walletRepo.Update(ctx, wallet); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return before, wallet.Balance, nil
}

// PlaceHold reserves part of the available balance.
func (u *LedgerUsecase) PlaceHold(ctx context.Context, input *entities.PlaceHoldInput) (*entities.Hold, error) {
	if !input.Amount.IsPositive() {
		return nil, domainerrors.Validation("invalid amount", map[string]string{"amount": "must be greater than zero"})
	}
	var hold *entities.Hold
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		wallet, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), input.WalletID)
		if err != nil {
			return err
		}
		if !wallet.IsActive() {
			return domainerrors.InvalidState("wallet is " + string(wallet.Status))
		}
		if wallet.AvailableBalance.LessThan(input.Amount) {
			return domainerrors.ErrInsufficientBalance
		}
		wallet.AvailableBalance = wallet.AvailableBalance.Sub(input.Amount)
		if err := u.walletRepo.Update(txCtx, wallet); err != nil {
			return err
		}
		now := nowFunc()
		hold = &entities.Hold{
			ID:            utils.GenerateUUIDv7(),
			WalletID:      wallet.ID,
			Amount:        input.Amount,
			Status:        entities.HoldStatusActive,
			Reason:        input.Reason,
			TransactionID: input.TransactionID,
			ExpiresAt:     input.ExpiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := u.holdRepo.Create(txCtx, hold); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "ledger.hold_placed",
			Category:     entities.AuditCategoryLedger,
			ActorID:      &wallet.UserID,
			Action:       "create",
			ResourceType: "hold",
			ResourceID:   hold.ID.String(),
			NewValues:    map[string]interface{}{"wallet_id": wallet.ID.String(), "amount": input.Amount.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseHold ends an active hold. Capturing debits the held amount,
// releasing just makes it spendable again.
func (u *LedgerUsecase) ReleaseHold(ctx context.Context, holdID uuid.UUID, capture bool) (*entities.Hold, error) {
	var hold *entities.Hold
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		h, err := u.holdRepo.GetByID(u.uow.WithLock(txCtx), holdID)
		if err != nil {
			return err
		}
		status := entities.HoldStatusReleased
		if capture {
			status = entities.HoldStatusCaptured
		}
		if err := u.endHold(txCtx, h, status); err != nil {
			return err
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseTransactionHolds releases every active hold tied to a transaction.
// Runs inside the caller's unit of work.
func (u *LedgerUsecase) ReleaseTransactionHolds(ctx context.Context, transactionID uuid.UUID) error {
	holds, err := u.holdRepo.ListActiveByTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	for _, h := range holds {
		if err := u.endHold(ctx, h, entities.HoldStatusReleased); err != nil {
			return err
		}
	}
	return nil
}

// ExpireHolds releases holds past their expiry. It returns how many expired.
func (u *LedgerUsecase) ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	holds, err := u.holdRepo.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, h := range holds {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		err := u.uow.Do(ctx, func(txCtx context.Context) error {
			locked, err := u.holdRepo.GetByID(u.uow.WithLock(txCtx), h.ID)
			if err != nil {
				return err
			}
			return u.endHold(txCtx, locked, entities.HoldStatusExpired)
		})
		if err != nil {
			logger.Error(ctx, "Failed to expire hold", zap.String("hold_id", h.ID.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (u *LedgerUsecase) endHold(ctx context.Context, hold *entities.Hold, status entities.HoldStatus) error {
	if hold.Status != entities.HoldStatusActive {
		return domainerrors.InvalidState("hold is " + string(hold.Status))
	}
	wallet, err := u.walletRepo.GetByID(u.uow.WithLock(ctx), hold.WalletID)
	if err != nil {
		return err
	}
	wallet.AvailableBalance = wallet.AvailableBalance.Add(hold.Amount)
	if status == entities.HoldStatusCaptured {
		if _, _, err := u.Debit(ctx, wallet, hold.Amount); err != nil {
			return err
		}
	} else if err := u.walletRepo.Update(ctx, wallet); err != nil {
		return err
	}

	now := nowFunc()
	hold.Status = status
	hold.ReleasedAt = null.TimeFrom(now)
	hold.UpdatedAt = now
	if err := u.holdRepo.Update(ctx, hold); err != nil {
		return err
	}
	return u.audit.Record(ctx, AuditEntry{
		EventType:    "ledger.hold_" + string(status),
		Category:     entities.AuditCategoryLedger,
		ActorID:      &wallet.UserID,
		Action:       "update",
		ResourceType: "hold",
		ResourceID:   hold.ID.String(),
		NewValues:    map[string]interface{}{"status": string(status), "amount": hold.Amount.String()},
	})
}

var walletTransitions = map[entities.WalletStatus][]entities.WalletStatus{
	entities.WalletStatusActive:  {entities.WalletStatusFrozen, entities.WalletStatusBlocked, entities.WalletStatusClosed},
	entities.WalletStatusFrozen:  {entities.WalletStatusActive, entities.WalletStatusBlocked, entities.WalletStatusClosed},
	entities.WalletStatusBlocked: {entities.WalletStatusActive, entities.WalletStatusClosed},
}

// Freeze stops money movement on the owner's wallet.
func (u *LedgerUsecase) Freeze(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error) {
	if _, err := u.GetWallet(ctx, userID, walletID); err != nil {
		return nil, err
	}
	return u.ChangeStatus(ctx, walletID, entities.WalletStatusFrozen, &userID, "frozen by owner")
}

// Unfreeze reactivates a frozen wallet.
func (u *LedgerUsecase) Unfreeze(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error) {
	w, err := u.GetWallet(ctx, userID, walletID)
	if err != nil {
		return nil, err
	}
	if w.Status != entities.WalletStatusFrozen {
		return nil, domainerrors.InvalidState("wallet is not frozen")
	}
	return u.ChangeStatus(ctx, walletID, entities.WalletStatusActive, &userID, "unfrozen by owner")
}

// Block is a staff action.
func (u *LedgerUsecase) Block(ctx context.Context, walletID, staffID uuid.UUID, reason string) (*entities.Wallet, error) {
	return u.ChangeStatus(ctx, walletID, entities.WalletStatusBlocked, &staffID, reason)
}

// Close retires a wallet with a zero balance.
func (u *LedgerUsecase) Close(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error) {
	if _, err := u.GetWallet(ctx, userID, walletID); err != nil {
		return nil, err
	}
	return u.ChangeStatus(ctx, walletID, entities.WalletStatusClosed, &userID, "closed by owner")
}

// ChangeStatus moves a wallet through its lifecycle.
func (u *LedgerUsecase) ChangeStatus(ctx context.Context, walletID uuid.UUID, to entities.WalletStatus, actorID *uuid.UUID, reason string) (*entities.Wallet, error) {
	var wallet *entities.Wallet
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		w, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), walletID)
		if err != nil {
			return err
		}
		allowed := false
		for _, next := range walletTransitions[w.Status] {
			if next == to {
				allowed = true
				break
			}
		}
		if !allowed {
			return domainerrors.InvalidState(describe("wallet cannot move from %s to %s", w.Status, to))
		}
		if to == entities.WalletStatusClosed {
			if !w.Balance.IsZero() {
				return domainerrors.InvalidState("wallet balance must be zero to close")
			}
			held, err := u.holdRepo.SumActive(txCtx, w.ID)
			if err != nil {
				return err
			}
			if !held.IsZero() {
				return domainerrors.InvalidState("wallet has active holds")
			}
		}
		from := w.Status
		w.Status = to
		if err := u.walletRepo.Update(txCtx, w); err != nil {
			return err
		}
		wallet = w
		severity := entities.SeverityInfo
		if to == entities.WalletStatusBlocked {
			severity = entities.SeverityWarning
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "wallet.status_changed",
			Category:     entities.AuditCategoryWallet,
			Severity:     severity,
			ActorID:      actorID,
			Action:       "update",
			ResourceType: "wallet",
			ResourceID:   w.ID.String(),
			Request:      map[string]interface{}{"reason": reason},
			OldValues:    map[string]interface{}{"status": string(from)},
			NewValues:    map[string]interface{}{"status": string(to)},
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}
