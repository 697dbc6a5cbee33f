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

// InitiateWithdrawal debits the wallet and asks the provider to pay out.
// A payout the provider has not settled yet stays PROCESSING until verify or
// webhook; a failed payout is refunded.
func (u *TransactionUsecase) InitiateWithdrawal(ctx context.Context, userID uuid.UUID, input *entities.WithdrawalInput) (*entities.Transaction, error) {
	ctx = detach(ctx)
	if existing, err := u.replay(ctx, input.IdempotencyKey); err != nil || existing != nil {
		return u.checkReplayOwner(existing, input.WalletID, err)
	}

	wallet, err := u.ledger.GetWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	cur, err := u.ledger.Currency(ctx, wallet.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(input.Amount, cur)
	if err != nil {
		return nil, err
	}
	account, err := u.payoutAccount(cur, input)
	if err != nil {
		return nil, err
	}
	provider, err := u.providers.Withdrawal(cur.Code)
	if err != nil {
		return nil, err
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	fee := money.Round(u.fees.WithdrawalFlat.Add(money.Percentage(amount, u.fees.WithdrawalPercent, cur.DecimalPlaces)), cur.DecimalPlaces)
	draft := newTransaction(entities.TransactionTypeWithdrawal, entities.DirectionDebit, cur.Code, refPrefixWithdrawal)
	draft.Amount = amount.Add(fee)
	draft.FeeAmount = fee
	draft.NetAmount = amount
	draft.FromUserID = uuidPtr(userID)
	draft.FromWalletID = uuidPtr(wallet.ID)
	draft.ProviderName = nullString(provider.Name())
	draft.Description = "Withdrawal"
	draft.SetMeta("account_number", account.AccountNumber)
	if account.BankCode != "" {
		draft.SetMeta("bank_code", account.BankCode)
	}
	if account.Address != "" {
		draft.SetMeta("address", account.Address)
	}
	if input.IdempotencyKey != "" {
		draft.ExternalReference = nullString(input.IdempotencyKey)
	}

	var (
		txn      *entities.Transaction
		replayed bool
		outcome  providers.Status
	)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if existing, err := u.replay(u.uow.WithLock(txCtx), input.IdempotencyKey); err != nil || existing != nil {
			txn, replayed = existing, true
			return err
		}
		w, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), wallet.ID)
		if err != nil {
			return err
		}
		if err := u.authorize(txCtx, w, input.PIN, input.IP); err != nil {
			return err
		}
		if err := u.checkDailyLimit(txCtx, w, draft.Amount); err != nil {
			return err
		}
		t := cloneTransaction(draft)
		if err := u.txnRepo.Create(txCtx, t); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusProcessing, &userID, ""); err != nil {
			return err
		}
		before, after, err := u.ledger.Debit(txCtx, w, t.Amount)
		if err != nil {
			return err
		}
		t.FromBalanceBefore, t.FromBalanceAfter = nullDecimal(before), nullDecimal(after)
		if err := u.addFee(txCtx, t, "withdrawal", fee, u.fees.WithdrawalPercent); err != nil {
			return err
		}

		res, err := provider.InitiateWithdrawal(txCtx, providers.WithdrawalRequest{
			Customer:  customerOf(user),
			Amount:    amount,
			Currency:  cur.Code,
			Reference: providerRequestReference(t),
			Account:   account,
			Narration: t.Reference,
		})
		if err != nil {
			return providerFailure(err)
		}
		if res.Status == providers.StatusFailed {
			return domainerrors.ProviderError("withdrawal rejected by "+provider.Name(), nil)
		}
		t.ProviderReference = nullString(res.ProviderReference)
		outcome = res.Status
		if outcome == providers.StatusSuccess {
			if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, &userID, ""); err != nil {
				return err
			}
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		txn = t
		return u.auditTxn(txCtx, t, w.ID, &userID, "transaction.debit", t.FromBalanceBefore, t.FromBalanceAfter)
	})
	if err != nil {
		u.recordFailure(ctx, draft, err)
		return nil, err
	}
	if replayed {
		return u.checkReplayOwner(txn, input.WalletID, nil)
	}
	observeTransaction(txn)
	logger.Info(ctx, "Withdrawal initiated",
		zap.String("reference", txn.Reference),
		zap.String("provider", provider.Name()),
		zap.String("status", string(txn.Status)),
	)
	if outcome == providers.StatusSuccess {
		u.notifyWithdrawal(ctx, txn)
	}
	return txn, nil
}

func (u *TransactionUsecase) payoutAccount(cur *entities.Currency, input *entities.WithdrawalInput) (providers.AccountDetails, error) {
	if cur.IsCrypto {
		addr, err := u.normalizeAddress(input.Address)
		if err != nil {
			return providers.AccountDetails{}, domainerrors.Validation("invalid address", map[string]string{"address": err.Error()})
		}
		return providers.AccountDetails{Address: addr, AccountNumber: addr}, nil
	}
	fields := map[string]string{}
	if strings.TrimSpace(input.BankCode) == "" {
		fields["bankCode"] = "required"
	}
	if strings.TrimSpace(input.AccountNumber) == "" {
		fields["accountNumber"] = "required"
	}
	if len(fields) > 0 {
		return providers.AccountDetails{}, domainerrors.Validation("payout account incomplete", fields)
	}
	return providers.AccountDetails{
		BankCode:      strings.TrimSpace(input.BankCode),
		AccountNumber: strings.TrimSpace(input.AccountNumber),
		AccountName:   strings.TrimSpace(input.AccountName),
	}, nil
}

// VerifyWithdrawal polls the provider for a PROCESSING payout.
func (u *TransactionUsecase) VerifyWithdrawal(ctx context.Context, userID uuid.UUID, reference string) (*entities.Transaction, error) {
	ctx = detach(ctx)
	txn, err := u.findByAnyReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if !txn.IsParty(userID) || txn.Type != entities.TransactionTypeWithdrawal {
		return nil, domainerrors.NotFound("transaction not found")
	}
	return u.pollWithdrawal(ctx, txn)
}

func (u *TransactionUsecase) pollWithdrawal(ctx context.Context, txn *entities.Transaction) (*entities.Transaction, error) {
	if txn.Status.IsTerminal() {
		return txn, nil
	}
	provider, err := u.withdrawalProviderFor(txn)
	if err != nil {
		return nil, err
	}
	res, err := provider.VerifyWithdrawal(ctx, txn.ProviderReference.String)
	if err != nil {
		return nil, providerFailure(err)
	}
	return u.applyWithdrawalOutcome(ctx, txn.ID, res.Status, res.Message)
}

// ApplyWithdrawalEvent settles a payout from a provider callback.
func (u *TransactionUsecase) ApplyWithdrawalEvent(ctx context.Context, ev *providers.WebhookEvent) (*entities.Transaction, error) {
	ctx = detach(ctx)
	txn, err := u.findByAnyReference(ctx, ev.Reference)
	if err != nil {
		return nil, err
	}
	if txn.Type != entities.TransactionTypeWithdrawal {
		return nil, domainerrors.BadRequest("reference is not a withdrawal")
	}
	return u.applyWithdrawalOutcome(ctx, txn.ID, ev.Status, ev.Event)
}

// ReconcileWithdrawals polls every PROCESSING payout once. Used by the worker.
func (u *TransactionUsecase) ReconcileWithdrawals(ctx context.Context, limit int) (int, error) {
	pending, _, err := u.txnRepo.List(ctx, entities.TransactionFilter{
		Type:   entities.TransactionTypeWithdrawal,
		Status: entities.TransactionStatusProcessing,
	}, limit, 0)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, txn := range pending {
		out, err := u.pollWithdrawal(ctx, txn)
		if err != nil {
			logger.Warn(ctx, "Withdrawal reconcile failed", zap.String("reference", txn.Reference), zap.Error(err))
			continue
		}
		if out.Status.IsTerminal() {
			settled++
		}
	}
	return settled, nil
}

func (u *TransactionUsecase) applyWithdrawalOutcome(ctx context.Context, txnID uuid.UUID, status providers.Status, message string) (*entities.Transaction, error) {
	if status == providers.StatusPending {
		return u.txnRepo.GetByID(ctx, txnID)
	}
	var (
		txn     *entities.Transaction
		changed bool
	)
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		t, err := u.txnRepo.GetByID(u.uow.WithLock(txCtx), txnID)
		if err != nil {
			return err
		}
		txn = t
		if t.Status != entities.TransactionStatusProcessing {
			return nil
		}
		changed = true
		if status == providers.StatusSuccess {
			if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, nil, ""); err != nil {
				return err
			}
			return u.txnRepo.Update(txCtx, t)
		}

		if message == "" {
			message = "withdrawal failed at provider"
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusFailed, nil, message); err != nil {
			return err
		}
		refund, err := u.refund(txCtx, t, message)
		if err != nil {
			return err
		}
		t.SetMeta("refund_transaction_id", refund.ID.String())
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		return u.ledger.ReleaseTransactionHolds(txCtx, t.ID)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		observeTransaction(txn)
		u.notifyWithdrawal(ctx, txn)
	}
	return txn, nil
}

// refund credits back the full debited amount of a failed outbound
// transaction as a linked REFUND.
func (u *TransactionUsecase) refund(ctx context.Context, original *entities.Transaction, reason string) (*entities.Transaction, error) {
	wallet, err := u.walletRepo.GetByID(u.uow.WithLock(ctx), *original.FromWalletID)
	if err != nil {
		return nil, err
	}
	r := newTransaction(entities.TransactionTypeRefund, entities.DirectionCredit, original.Currency, refPrefixRefund)
	r.Amount = original.Amount
	r.NetAmount = original.Amount
	r.ToUserID, r.ToWalletID = uuidPtr(wallet.UserID), uuidPtr(wallet.ID)
	r.RelatedID = uuidPtr(original.ID)
	r.ExternalReference = nullString("refund:" + original.Reference)
	r.Description = "Refund of " + original.Reference
	r.SetMeta("reason", reason)
	if err := u.txnRepo.Create(ctx, r); err != nil {
		return nil, err
	}
	if err := u.transition(ctx, r, entities.TransactionStatusProcessing, nil, ""); err != nil {
		return nil, err
	}
	before, after, err := u.ledger.Credit(ctx, wallet, r.Amount)
	if err != nil {
		return nil, err
	}
	r.ToBalanceBefore, r.ToBalanceAfter = nullDecimal(before), nullDecimal(after)
	if err := u.transition(ctx, r, entities.TransactionStatusCompleted, nil, ""); err != nil {
		return nil, err
	}
	if err := u.txnRepo.Update(ctx, r); err != nil {
		return nil, err
	}
	if err := u.auditTxn(ctx, r, wallet.ID, nil, "transaction.refund", r.ToBalanceBefore, r.ToBalanceAfter); err != nil {
		return nil, err
	}
	observeTransaction(r)
	return r, nil
}

func (u *TransactionUsecase) notifyWithdrawal(ctx context.Context, txn *entities.Transaction) {
	in := &entities.NotifyInput{
		UserID:            *txn.FromUserID,
		Type:              entities.NotificationWithdrawalSuccess,
		Priority:          entities.PriorityNormal,
		Title:             "Withdrawal successful",
		Body:              describe("%s %s has been paid out", txn.NetAmount.String(), txn.Currency),
		RelatedEntityType: "transaction",
		RelatedEntityID:   txn.ID.String(),
	}
	if txn.Status == entities.TransactionStatusFailed {
		in.Type = entities.NotificationWithdrawalFailed
		in.Priority = entities.PriorityHigh
		in.Title = "Withdrawal failed"
		in.Body = describe("Your withdrawal of %s %s failed and was refunded", txn.NetAmount.String(), txn.Currency)
	}
	u.notify(ctx, in)
}

func (u *TransactionUsecase) withdrawalProviderFor(txn *entities.Transaction) (providers.WithdrawalProvider, error) {
	if txn.ProviderName.Valid {
		return u.providers.WithdrawalByName(txn.ProviderName.String)
	}
	return u.providers.Withdrawal(txn.Currency)
}

// ListBanks returns payout banks for a currency.
func (u *TransactionUsecase) ListBanks(ctx context.Context, currency string) ([]providers.Bank, error) {
	cur, err := u.ledger.Currency(ctx, strings.ToUpper(currency))
	if err != nil {
		return nil, err
	}
	provider, err := u.providers.Withdrawal(cur.Code)
	if err != nil {
		return nil, err
	}
	banks, err := provider.ListBanks(ctx, cur.Code)
	if err != nil {
		return nil, providerFailure(err)
	}
	return banks, nil
}

// ResolveAccount returns the holder name of a bank account.
func (u *TransactionUsecase) ResolveAccount(ctx context.Context, currency, accountNumber, bankCode string) (string, error) {
	if strings.TrimSpace(accountNumber) == "" || strings.TrimSpace(bankCode) == "" {
		return "", domainerrors.Validation("account number and bank code required", map[string]string{
			"accountNumber": "required",
			"bankCode":      "required",
		})
	}
	provider, err := u.providers.Withdrawal(strings.ToUpper(currency))
	if err != nil {
		return "", err
	}
	name, err := provider.VerifyAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return "", providerFailure(err)
	}
	return name, nil
}
