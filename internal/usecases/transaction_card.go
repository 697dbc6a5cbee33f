package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
)

// RecordCardFunding books a CARD_FUNDING entry. Cards spend straight from
// their wallet, so funding moves no money and the balances before and after
// are equal.
func (u *TransactionUsecase) RecordCardFunding(ctx context.Context, card *entities.Card, amount string, actor uuid.UUID) (*entities.Transaction, error) {
	ctx = detach(ctx)
	cur, err := u.ledger.Currency(ctx, card.Currency)
	if err != nil {
		return nil, err
	}
	value, err := parseAmount(amount, cur)
	if err != nil {
		return nil, err
	}
	var txn *entities.Transaction
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		wallet, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), card.WalletID)
		if err != nil {
			return err
		}
		if !wallet.IsActive() {
			return domainerrors.InvalidState("wallet is " + string(wallet.Status))
		}
		if wallet.AvailableBalance.LessThan(value) {
			return domainerrors.ErrInsufficientBalance
		}
		t := newTransaction(entities.TransactionTypeCardFunding, entities.DirectionInternal, cur.Code, refPrefixCard)
		t.Amount = value
		t.NetAmount = value
		t.FromUserID, t.FromWalletID = uuidPtr(wallet.UserID), uuidPtr(wallet.ID)
		t.ToUserID, t.ToWalletID = uuidPtr(wallet.UserID), uuidPtr(wallet.ID)
		t.RelatedID = uuidPtr(card.ID)
		t.Description = "Card funding " + card.MaskedPAN
		t.FromBalanceBefore, t.FromBalanceAfter = nullDecimal(wallet.Balance), nullDecimal(wallet.Balance)
		t.ToBalanceBefore, t.ToBalanceAfter = nullDecimal(wallet.Balance), nullDecimal(wallet.Balance)
		if err := u.txnRepo.Create(txCtx, t); err != nil {
			return err
		}
		if err := u.complete(txCtx, t, &actor); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	observeTransaction(txn)
	return txn, nil
}

// CaptureCardSpend debits the card's wallet for a provider-reported
// authorisation, enforcing the card's monthly limit.
func (u *TransactionUsecase) CaptureCardSpend(ctx context.Context, in *entities.CardSpendInput) (*entities.Transaction, error) {
	ctx = detach(ctx)
	if strings.TrimSpace(in.ExternalReference) == "" {
		return nil, domainerrors.Validation("external reference required", map[string]string{"externalReference": "required"})
	}
	if existing, err := u.replay(ctx, in.ExternalReference); err != nil || existing != nil {
		return existing, err
	}
	card, err := u.cardRepo.GetByProviderCardID(ctx, in.ProviderCardID)
	if err != nil {
		return nil, err
	}
	cur, err := u.ledger.Currency(ctx, card.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := checkAmount(in.Amount, cur, "amount")
	if err != nil {
		return nil, err
	}

	draft := newTransaction(entities.TransactionTypeCardSpend, entities.DirectionDebit, cur.Code, refPrefixCard)
	draft.Amount = amount
	draft.NetAmount = amount
	draft.FromUserID = uuidPtr(card.UserID)
	draft.FromWalletID = uuidPtr(card.WalletID)
	draft.RelatedID = uuidPtr(card.ID)
	draft.ExternalReference = nullString(in.ExternalReference)
	draft.ProviderName = nullString(card.Provider)
	draft.Description = "Card payment"
	if in.Merchant != "" {
		draft.Description = "Card payment at " + in.Merchant
		draft.SetMeta("merchant", in.Merchant)
	}

	var (
		txn      *entities.Transaction
		replayed bool
	)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if existing, err := u.replay(u.uow.WithLock(txCtx), in.ExternalReference); err != nil || existing != nil {
			txn, replayed = existing, true
			return err
		}
		c, err := u.cardRepo.GetByID(u.uow.WithLock(txCtx), card.ID)
		if err != nil {
			return err
		}
		if c.Status != entities.CardStatusActive {
			return domainerrors.InvalidState("card is " + string(c.Status))
		}
		now := nowFunc()
		c.RollPeriod(now)
		if c.MonthlyLimit.IsPositive() && c.SpentThisMonth.Add(amount).GreaterThan(c.MonthlyLimit) {
			return fmt.Errorf("%w: card monthly limit of %s reached", domainerrors.ErrLimitExceeded, c.MonthlyLimit.String())
		}
		wallet, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), c.WalletID)
		if err != nil {
			return err
		}
		t := cloneTransaction(draft)
		if err := u.txnRepo.Create(txCtx, t); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusProcessing, nil, ""); err != nil {
			return err
		}
		before, after, err := u.ledger.Debit(txCtx, wallet, amount)
		if err != nil {
			return err
		}
		t.FromBalanceBefore, t.FromBalanceAfter = nullDecimal(before), nullDecimal(after)
		c.SpentThisMonth = c.SpentThisMonth.Add(amount)
		c.UpdatedAt = now
		if err := u.cardRepo.Update(txCtx, c); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, nil, ""); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		txn = t
		return u.auditTxn(txCtx, t, wallet.ID, nil, "transaction.debit", t.FromBalanceBefore, t.FromBalanceAfter)
	})
	if err != nil {
		u.recordFailure(ctx, draft, err)
		return nil, err
	}
	if !replayed {
		observeTransaction(txn)
	}
	return txn, nil
}
