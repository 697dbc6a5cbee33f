package usecases

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/money"
)

// InitiateDeposit opens a PENDING deposit with the currency's provider. The
// wallet is credited only once the provider confirms, by verify or webhook.
func (u *TransactionUsecase) InitiateDeposit(ctx context.Context, userID uuid.UUID, input *entities.DepositInput) (*entities.DepositResult, error) {
	ctx = detach(ctx)
	input.ExternalReference = strings.TrimSpace(input.ExternalReference)
	if existing, err := u.replay(ctx, input.ExternalReference); err != nil || existing != nil {
		if err != nil {
			return nil, err
		}
		if !existing.IsParty(userID) || existing.Type != entities.TransactionTypeDeposit {
			return nil, domainerrors.Conflict("external reference already used")
		}
		return &entities.DepositResult{Transaction: existing, PaymentURL: metaString(existing, "payment_url")}, nil
	}

	wallet, err := u.ledger.GetWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, domainerrors.InvalidState("wallet is " + string(wallet.Status))
	}
	cur, err := u.ledger.Currency(ctx, wallet.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(input.Amount, cur)
	if err != nil {
		return nil, err
	}
	provider, err := u.providers.Deposit(cur.Code)
	if err != nil {
		return nil, err
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	fee := money.Percentage(amount, u.fees.DepositPercent, cur.DecimalPlaces)
	txn := newTransaction(entities.TransactionTypeDeposit, entities.DirectionCredit, cur.Code, refPrefixDeposit)
	txn.Amount = amount
	txn.FeeAmount = fee
	txn.NetAmount = amount.Sub(fee)
	txn.ToUserID = uuidPtr(userID)
	txn.ToWalletID = uuidPtr(wallet.ID)
	txn.ProviderName = nullString(provider.Name())
	txn.Description = "Wallet funding"
	if input.Method != "" {
		txn.SetMeta("method", input.Method)
	}
	if input.ExternalReference != "" {
		txn.ExternalReference = nullString(input.ExternalReference)
	}
	if err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if existing, err := u.replay(u.uow.WithLock(txCtx), input.ExternalReference); err != nil || existing != nil {
			if err == nil {
				err = domainerrors.Conflict("external reference already used")
			}
			return err
		}
		return u.txnRepo.Create(txCtx, txn)
	}); err != nil {
		return nil, err
	}

	res, err := provider.InitiateDeposit(ctx, providers.DepositRequest{
		Customer:    customerOf(user),
		Amount:      amount,
		Currency:    cur.Code,
		Reference:   providerRequestReference(txn),
		Method:      input.Method,
		CallbackURL: input.CallbackURL,
	})
	if err == nil && res.Status == providers.StatusFailed {
		err = domainerrors.ProviderError("deposit rejected by "+provider.Name(), nil)
	}
	if err != nil {
		err = providerFailure(err)
		u.failPending(ctx, txn, err)
		return nil, err
	}

	txn.ProviderReference = nullString(res.ProviderReference)
	if res.PaymentURL != "" {
		txn.SetMeta("payment_url", res.PaymentURL)
	}
	txn.UpdatedAt = nowFunc()
	if err := u.txnRepo.Update(ctx, txn); err != nil {
		return nil, err
	}
	observeTransaction(txn)
	logger.Info(ctx, "Deposit initiated",
		zap.String("reference", txn.Reference),
		zap.String("provider", provider.Name()),
		zap.String("amount", amount.String()),
	)
	return &entities.DepositResult{Transaction: txn, PaymentURL: res.PaymentURL}, nil
}

// VerifyDeposit asks the provider for the outcome of a deposit and applies it.
// Completed or failed deposits are returned unchanged, so repeated calls never
// credit twice.
func (u *TransactionUsecase) VerifyDeposit(ctx context.Context, userID uuid.UUID, reference string) (*entities.Transaction, error) {
	ctx = detach(ctx)
	txn, err := u.findByAnyReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if !txn.IsParty(userID) || txn.Type != entities.TransactionTypeDeposit {
		return nil, domainerrors.NotFound("transaction not found")
	}
	if txn.Status.IsTerminal() {
		return txn, nil
	}
	provider, err := u.depositProviderFor(txn)
	if err != nil {
		return nil, err
	}
	res, err := provider.VerifyDeposit(ctx, txn.ProviderReference.String)
	if err != nil {
		return nil, providerFailure(err)
	}
	return u.applyDepositOutcome(ctx, txn.ID, res.Status, res.Message, nil)
}

// ApplyDepositEvent settles a deposit from a provider callback.
func (u *TransactionUsecase) ApplyDepositEvent(ctx context.Context, ev *providers.WebhookEvent) (*entities.Transaction, error) {
	ctx = detach(ctx)
	txn, err := u.findByAnyReference(ctx, ev.Reference)
	if err != nil {
		return nil, err
	}
	if txn.Type != entities.TransactionTypeDeposit {
		return nil, domainerrors.BadRequest("reference is not a deposit")
	}
	if ev.Amount.IsPositive() && !ev.Amount.Equal(txn.Amount) && ev.Status == providers.StatusSuccess {
		logger.Warn(ctx, "Deposit amount mismatch",
			zap.String("reference", txn.Reference),
			zap.String("expected", txn.Amount.String()),
			zap.String("reported", ev.Amount.String()),
		)
		return nil, domainerrors.BadRequest("deposit amount does not match")
	}
	return u.applyDepositOutcome(ctx, txn.ID, ev.Status, ev.Event, nil)
}

func (u *TransactionUsecase) applyDepositOutcome(ctx context.Context, txnID uuid.UUID, status providers.Status, message string, actor *uuid.UUID) (*entities.Transaction, error) {
	if status == providers.StatusPending {
		return u.txnRepo.GetByID(ctx, txnID)
	}
	var (
		txn     *entities.Transaction
		settled bool
		failed  bool
	)
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		t, err := u.txnRepo.GetByID(u.uow.WithLock(txCtx), txnID)
		if err != nil {
			return err
		}
		txn = t
		if t.Status.IsTerminal() {
			return nil
		}
		if status == providers.StatusFailed {
			if message == "" {
				message = "deposit failed at provider"
			}
			if err := u.transition(txCtx, t, entities.TransactionStatusFailed, actor, message); err != nil {
				return err
			}
			failed = true
			return u.txnRepo.Update(txCtx, t)
		}

		wallet, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), *t.ToWalletID)
		if err != nil {
			return err
		}
		if t.Status == entities.TransactionStatusPending {
			if err := u.transition(txCtx, t, entities.TransactionStatusProcessing, actor, ""); err != nil {
				return err
			}
		}
		before, after, err := u.ledger.Credit(txCtx, wallet, t.NetAmount)
		if err != nil {
			return err
		}
		t.ToBalanceBefore, t.ToBalanceAfter = nullDecimal(before), nullDecimal(after)
		if err := u.addFee(txCtx, t, "deposit", t.FeeAmount, u.fees.DepositPercent); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, actor, ""); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		settled = true
		return u.auditTxn(txCtx, t, wallet.ID, actor, "transaction.credit", t.ToBalanceBefore, t.ToBalanceAfter)
	})
	if err != nil {
		return nil, err
	}
	if failed {
		observeTransaction(txn)
	}
	if settled {
		observeTransaction(txn)
		u.notify(ctx, &entities.NotifyInput{
			UserID:            *txn.ToUserID,
			Type:              entities.NotificationDepositSuccess,
			Priority:          entities.PriorityNormal,
			Title:             "Deposit received",
			Body:              describe("Your wallet was funded with %s %s", txn.NetAmount.String(), txn.Currency),
			RelatedEntityType: "transaction",
			RelatedEntityID:   txn.ID.String(),
		})
	}
	return txn, nil
}

// CreditByAccountNumber books an inbound bank transfer addressed to a wallet
// account number. The provider's reference makes it idempotent.
func (u *TransactionUsecase) CreditByAccountNumber(ctx context.Context, in *entities.AccountCreditInput) (*entities.Transaction, error) {
	ctx = detach(ctx)
	if strings.TrimSpace(in.ExternalReference) == "" {
		return nil, domainerrors.Validation("external reference required", map[string]string{"externalReference": "required"})
	}
	if existing, err := u.replay(ctx, in.ExternalReference); err != nil || existing != nil {
		return existing, err
	}
	wallet, err := u.walletRepo.GetByAccountNumber(ctx, strings.TrimSpace(in.AccountNumber))
	if err != nil {
		return nil, err
	}
	if in.Currency != "" && !strings.EqualFold(in.Currency, wallet.Currency) {
		return nil, domainerrors.Validation("currency mismatch", map[string]string{"currency": "does not match the wallet currency"})
	}
	cur, err := u.ledger.Currency(ctx, wallet.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := checkAmount(in.Amount, cur, "amount")
	if err != nil {
		return nil, err
	}
	fee := money.Percentage(amount, u.fees.DepositPercent, cur.DecimalPlaces)

	var (
		txn      *entities.Transaction
		replayed bool
	)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if existing, err := u.replay(u.uow.WithLock(txCtx), in.ExternalReference); err != nil || existing != nil {
			txn, replayed = existing, true
			return err
		}
		w, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), wallet.ID)
		if err != nil {
			return err
		}
		t := newTransaction(entities.TransactionTypeDeposit, entities.DirectionCredit, cur.Code, refPrefixDeposit)
		t.Amount = amount
		t.FeeAmount = fee
		t.NetAmount = amount.Sub(fee)
		t.ToUserID = uuidPtr(w.UserID)
		t.ToWalletID = uuidPtr(w.ID)
		t.ExternalReference = nullString(in.ExternalReference)
		t.ProviderReference = nullString(in.ExternalReference)
		if in.Provider != "" {
			t.ProviderName = nullString(in.Provider)
		}
		t.Description = "Bank transfer"
		if in.SenderName != "" {
			t.SetMeta("sender_name", in.SenderName)
			t.Description = "Bank transfer from " + in.SenderName
		}
		if err := u.txnRepo.Create(txCtx, t); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusProcessing, nil, ""); err != nil {
			return err
		}
		before, after, err := u.ledger.Credit(txCtx, w, t.NetAmount)
		if err != nil {
			return err
		}
		t.ToBalanceBefore, t.ToBalanceAfter = nullDecimal(before), nullDecimal(after)
		if err := u.addFee(txCtx, t, "deposit", fee, u.fees.DepositPercent); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, nil, ""); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		txn = t
		return u.auditTxn(txCtx, t, w.ID, nil, "transaction.credit", t.ToBalanceBefore, t.ToBalanceAfter)
	})
	if err != nil || replayed {
		return txn, err
	}
	observeTransaction(txn)
	u.notify(ctx, &entities.NotifyInput{
		UserID:            wallet.UserID,
		Type:              entities.NotificationTransferReceived,
		Priority:          entities.PriorityNormal,
		Title:             "Money received",
		Body:              describe("You received %s %s", txn.NetAmount.String(), txn.Currency),
		RelatedEntityType: "transaction",
		RelatedEntityID:   txn.ID.String(),
	})
	return txn, nil
}

// failPending marks a committed PENDING transaction FAILED in its own unit.
func (u *TransactionUsecase) failPending(ctx context.Context, txn *entities.Transaction, cause error) {
	reason := failureReason(cause)
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.transition(txCtx, txn, entities.TransactionStatusFailed, nil, reason); err != nil {
			return err
		}
		return u.txnRepo.Update(txCtx, txn)
	})
	if err != nil {
		logger.Error(ctx, "Failed to mark transaction failed",
			zap.String("reference", txn.Reference),
			zap.Error(err),
		)
		return
	}
	observeTransaction(txn)
}

func (u *TransactionUsecase) depositProviderFor(txn *entities.Transaction) (providers.DepositProvider, error) {
	if txn.ProviderName.Valid {
		return u.providers.DepositByName(txn.ProviderName.String)
	}
	return u.providers.Deposit(txn.Currency)
}

// providerRequestReference is the reference sent to the provider: the
// caller's key when there is one, our own reference otherwise.
func providerRequestReference(txn *entities.Transaction) string {
	if txn.ExternalReference.Valid && txn.ExternalReference.String != "" {
		return txn.ExternalReference.String
	}
	return txn.Reference
}

func customerOf(user *entities.User) providers.Customer {
	return providers.Customer{
		ID:        user.ID.String(),
		Email:     user.Email.String,
		Phone:     user.Phone.String,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func metaString(txn *entities.Transaction, key string) string {
	if s, ok := txn.Metadata[key].(string); ok {
		return s
	}
	return ""
}
