package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	infraproviders "walletcore.backend/internal/infrastructure/providers"
	"walletcore.backend/pkg/money"
)

// FeeSchedule prices provider-facing flows. Transfers carry the fee the caller quotes.
type FeeSchedule struct {
	DepositPercent    decimal.Decimal
	WithdrawalFlat    decimal.Decimal
	WithdrawalPercent decimal.Decimal
}

// TransactionUsecase is the transaction engine. Every money movement and the
// record describing it commit in one unit of work.
type TransactionUsecase struct {
	uow              repositories.UnitOfWork
	txnRepo          repositories.TransactionRepository
	walletRepo       repositories.WalletRepository
	userRepo         repositories.UserRepository
	cardRepo         repositories.CardRepository
	ledger           *LedgerUsecase
	providers        PaymentProviders
	notifier         Notifier
	audit            *AuditUsecase
	fees             FeeSchedule
	normalizeAddress func(string) (string, error)
}

// NewTransactionUsecase creates a new transaction usecase
func NewTransactionUsecase(
	uow repositories.UnitOfWork,
	txnRepo repositories.TransactionRepository,
	walletRepo repositories.WalletRepository,
	userRepo repositories.UserRepository,
	cardRepo repositories.CardRepository,
	ledger *LedgerUsecase,
	paymentProviders PaymentProviders,
	notifier Notifier,
	audit *AuditUsecase,
) *TransactionUsecase {
	return &TransactionUsecase{
		uow:              uow,
		txnRepo:          txnRepo,
		walletRepo:       walletRepo,
		userRepo:         userRepo,
		cardRepo:         cardRepo,
		ledger:           ledger,
		providers:        paymentProviders,
		notifier:         notifier,
		audit:            audit,
		normalizeAddress: infraproviders.NormalizeCryptoAddress,
	}
}

// WithFees sets the deposit and withdrawal fee schedule.
func (u *TransactionUsecase) WithFees(fees FeeSchedule) *TransactionUsecase {
	u.fees = fees
	return u
}

// Transfer moves funds between two wallets. The outbound fee is added on top
// of the amount; the destination receives the amount, converted when the
// currencies differ.
func (u *TransactionUsecase) Transfer(ctx context.Context, userID uuid.UUID, input *entities.TransferInput) (*entities.Transaction, error) {
	ctx = detach(ctx)

	if existing, err := u.replay(ctx, input.IdempotencyKey); err != nil || existing != nil {
		return u.checkReplayOwner(existing, input.FromWalletID, err)
	}

	source, err := u.walletRepo.GetByID(ctx, input.FromWalletID)
	if err != nil {
		return nil, err
	}
	if source.UserID != userID {
		return nil, domainerrors.NotFound("wallet not found")
	}
	dest, err := u.resolveDestination(ctx, input)
	if err != nil {
		return nil, err
	}
	if dest.ID == source.ID {
		return nil, domainerrors.Validation("cannot transfer to the same wallet", map[string]string{"toWalletId": "must differ from the source wallet"})
	}

	srcCur, err := u.ledger.Currency(ctx, source.Currency)
	if err != nil {
		return nil, err
	}
	dstCur := srcCur
	if dest.Currency != source.Currency {
		if dstCur, err = u.ledger.Currency(ctx, dest.Currency); err != nil {
			return nil, err
		}
	}
	amount, err := parseAmount(input.Amount, srcCur)
	if err != nil {
		return nil, err
	}
	fee, err := parseOptionalAmount(input.Fee, srcCur, "fee")
	if err != nil {
		return nil, err
	}

	txType := input.Type
	prefix := refPrefixPayment
	if txType == "" {
		txType = entities.TransactionTypeTransfer
		prefix = refPrefixTransfer
	}
	draft := newTransaction(txType, entities.DirectionInternal, srcCur.Code, prefix)
	draft.Amount = amount.Add(fee)
	draft.FeeAmount = fee
	draft.NetAmount = amount
	draft.FromUserID = uuidPtr(source.UserID)
	draft.FromWalletID = uuidPtr(source.ID)
	draft.ToUserID = uuidPtr(dest.UserID)
	draft.ToWalletID = uuidPtr(dest.ID)
	draft.Description = strings.TrimSpace(input.Description)
	draft.RelatedID = input.RelatedID
	if input.IdempotencyKey != "" {
		draft.ExternalReference = nullString(input.IdempotencyKey)
	}

	var (
		txn      *entities.Transaction
		replayed bool
	)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if existing, err := u.replay(u.uow.WithLock(txCtx), input.IdempotencyKey); err != nil || existing != nil {
			txn, replayed = existing, true
			return err
		}
		src, dst, err := u.lockPair(txCtx, source.ID, dest.ID)
		if err != nil {
			return err
		}
		if err := u.authorize(txCtx, src, input.PIN, input.IP); err != nil {
			return err
		}
		if err := u.checkDailyLimit(txCtx, src, draft.Amount); err != nil {
			return err
		}

		t := cloneTransaction(draft)
		if err := u.txnRepo.Create(txCtx, t); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusProcessing, &userID, ""); err != nil {
			return err
		}
		fromBefore, fromAfter, err := u.ledger.Debit(txCtx, src, t.Amount)
		if err != nil {
			return err
		}
		credit := amount
		if dstCur.Code != srcCur.Code {
			converted, rate, err := money.Convert(amount, srcCur.ExchangeRateUSD, dstCur.ExchangeRateUSD, dstCur.DecimalPlaces)
			if err != nil {
				return domainerrors.Validation("currency conversion unavailable", map[string]string{"currency": err.Error()})
			}
			credit = converted
			t.ExchangeRate = nullDecimal(rate)
			t.SetMeta("credited_amount", converted.String())
			t.SetMeta("credited_currency", dstCur.Code)
		}
		toBefore, toAfter, err := u.ledger.Credit(txCtx, dst, credit)
		if err != nil {
			return err
		}
		t.FromBalanceBefore, t.FromBalanceAfter = nullDecimal(fromBefore), nullDecimal(fromAfter)
		t.ToBalanceBefore, t.ToBalanceAfter = nullDecimal(toBefore), nullDecimal(toAfter)

		if err := u.addFee(txCtx, t, "transfer", fee, decimal.Zero); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, &userID, ""); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		if err := u.auditTxn(txCtx, t, src.ID, &userID, "transaction.debit", t.FromBalanceBefore, t.FromBalanceAfter); err != nil {
			return err
		}
		if err := u.auditTxn(txCtx, t, dst.ID, &userID, "transaction.credit", t.ToBalanceBefore, t.ToBalanceAfter); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		u.recordFailure(ctx, draft, err)
		return nil, err
	}
	if replayed {
		return u.checkReplayOwner(txn, input.FromWalletID, nil)
	}

	observeTransaction(txn)
	received := entities.NotificationTransferReceived
	if txType == entities.TransactionTypePayment {
		received = entities.NotificationPaymentReceived
	}
	u.notify(ctx, &entities.NotifyInput{
		UserID:            dest.UserID,
		Type:              received,
		Priority:          entities.PriorityNormal,
		Title:             "Money received",
		Body:              describe("You received %s %s", creditedAmount(txn, amount).String(), dest.Currency),
		RelatedEntityType: "transaction",
		RelatedEntityID:   txn.ID.String(),
		Channels:          []entities.Channel{entities.ChannelInApp, entities.ChannelPush},
	})
	u.notify(ctx, &entities.NotifyInput{
		UserID:            source.UserID,
		Type:              entities.NotificationTransferSuccess,
		Priority:          entities.PriorityNormal,
		Title:             "Transfer successful",
		Body:              describe("You sent %s %s", amount.String(), source.Currency),
		RelatedEntityType: "transaction",
		RelatedEntityID:   txn.ID.String(),
		Channels:          []entities.Channel{entities.ChannelPush},
	})
	return txn, nil
}

func creditedAmount(txn *entities.Transaction, fallback decimal.Decimal) decimal.Decimal {
	if raw, ok := txn.Metadata["credited_amount"].(string); ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			return d
		}
	}
	return fallback
}

func (u *TransactionUsecase) checkReplayOwner(existing *entities.Transaction, walletID uuid.UUID, err error) (*entities.Transaction, error) {
	if err != nil {
		return nil, err
	}
	if existing.FromWalletID == nil || *existing.FromWalletID != walletID {
		return nil, domainerrors.Conflict("idempotency key already used")
	}
	return existing, nil
}

func (u *TransactionUsecase) resolveDestination(ctx context.Context, input *entities.TransferInput) (*entities.Wallet, error) {
	var (
		dest *entities.Wallet
		err  error
	)
	switch {
	case input.ToWalletID != nil:
		dest, err = u.walletRepo.GetByID(ctx, *input.ToWalletID)
	case strings.TrimSpace(input.ToAccountNumber) != "":
		dest, err = u.walletRepo.GetByAccountNumber(ctx, strings.TrimSpace(input.ToAccountNumber))
	default:
		return nil, domainerrors.Validation("destination required", map[string]string{"toWalletId": "wallet id or account number required"})
	}
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("destination wallet not found")
		}
		return nil, err
	}
	return dest, nil
}

// PostingInput is a single-wallet system movement (investments, loans).
type PostingInput struct {
	WalletID          uuid.UUID
	Direction         entities.TransactionDirection
	Amount            decimal.Decimal
	Type              entities.TransactionType
	Description       string
	ExternalReference string
	RelatedID         *uuid.UUID
	ActorID           *uuid.UUID
	Metadata          map[string]interface{}
}

// Post debits or credits one wallet and records a COMPLETED transaction. It
// joins the caller's unit of work when there is one and is idempotent on
// ExternalReference.
func (u *TransactionUsecase) Post(ctx context.Context, in PostingInput) (*entities.Transaction, error) {
	if in.Direction != entities.DirectionDebit && in.Direction != entities.DirectionCredit {
		return nil, domainerrors.ErrInvalidInput
	}
	var txn *entities.Transaction
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		if existing, err := u.replay(txCtx, in.ExternalReference); err != nil || existing != nil {
			txn = existing
			return err
		}
		wallet, err := u.walletRepo.GetByID(u.uow.WithLock(txCtx), in.WalletID)
		if err != nil {
			return err
		}
		prefix := refPrefixInvestment
		switch in.Type {
		case entities.TransactionTypeLoanDisbursement, entities.TransactionTypeLoanRepayment:
			prefix = refPrefixLoan
		case entities.TransactionTypeRefund:
			prefix = refPrefixRefund
		}
		t := newTransaction(in.Type, in.Direction, wallet.Currency, prefix)
		t.Amount = in.Amount
		t.NetAmount = in.Amount
		t.Description = in.Description
		t.RelatedID = in.RelatedID
		t.Metadata = in.Metadata
		if in.ExternalReference != "" {
			t.ExternalReference = nullString(in.ExternalReference)
		}
		if in.Direction == entities.DirectionDebit {
			t.FromUserID, t.FromWalletID = uuidPtr(wallet.UserID), uuidPtr(wallet.ID)
		} else {
			t.ToUserID, t.ToWalletID = uuidPtr(wallet.UserID), uuidPtr(wallet.ID)
		}
		if err := u.txnRepo.Create(txCtx, t); err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusProcessing, in.ActorID, ""); err != nil {
			return err
		}

		var before, after decimal.Decimal
		if in.Direction == entities.DirectionDebit {
			before, after, err = u.ledger.Debit(txCtx, wallet, in.Amount)
			t.FromBalanceBefore, t.FromBalanceAfter = nullDecimal(before), nullDecimal(after)
		} else {
			before, after, err = u.ledger.Credit(txCtx, wallet, in.Amount)
			t.ToBalanceBefore, t.ToBalanceAfter = nullDecimal(before), nullDecimal(after)
		}
		if err != nil {
			return err
		}
		if err := u.transition(txCtx, t, entities.TransactionStatusCompleted, in.ActorID, ""); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		event := "transaction.credit"
		if in.Direction == entities.DirectionDebit {
			event = "transaction.debit"
		}
		if err := u.auditTxn(txCtx, t, wallet.ID, in.ActorID, event, nullDecimal(before), nullDecimal(after)); err != nil {
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

// Reverse undoes a completed transfer or payment with a compensating
// REVERSAL transaction. The principal moves back; the fee is not refunded.
// Staff only.
func (u *TransactionUsecase) Reverse(ctx context.Context, transactionID, actorID uuid.UUID, reason string) (*entities.Transaction, error) {
	ctx = detach(ctx)
	if strings.TrimSpace(reason) == "" {
		return nil, domainerrors.Validation("reason required", map[string]string{"reason": "required"})
	}
	var original, reversal *entities.Transaction
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		t, err := u.txnRepo.GetByID(u.uow.WithLock(txCtx), transactionID)
		if err != nil {
			return err
		}
		if t.Status != entities.TransactionStatusCompleted {
			return domainerrors.InvalidState("only completed transactions can be reversed")
		}
		if t.Type != entities.TransactionTypeTransfer && t.Type != entities.TransactionTypePayment {
			return domainerrors.InvalidState("only transfers and payments can be reversed")
		}
		src, dst, err := u.lockPair(txCtx, *t.FromWalletID, *t.ToWalletID)
		if err != nil {
			return err
		}
		// the fee left the ledger on the original posting and stays retained;
		// each side gets back exactly what it moved
		credited := t.ToBalanceAfter.Decimal.Sub(t.ToBalanceBefore.Decimal)
		refund := t.NetAmount

		r := newTransaction(entities.TransactionTypeReversal, entities.DirectionInternal, t.Currency, refPrefixReversal)
		r.Amount = refund
		r.NetAmount = refund
		r.FromUserID, r.FromWalletID = uuidPtr(dst.UserID), uuidPtr(dst.ID)
		r.ToUserID, r.ToWalletID = uuidPtr(src.UserID), uuidPtr(src.ID)
		r.RelatedID = uuidPtr(t.ID)
		r.Description = reason
		r.ExternalReference = nullString("reversal:" + t.Reference)
		r.SetMeta("debited_amount", credited.String())
		if t.FeeAmount.IsPositive() {
			r.SetMeta("fee_retained", t.FeeAmount.String())
		}
		if err := u.txnRepo.Create(txCtx, r); err != nil {
			return err
		}
		if err := u.transition(txCtx, r, entities.TransactionStatusProcessing, &actorID, reason); err != nil {
			return err
		}
		fromBefore, fromAfter, err := u.ledger.Debit(txCtx, dst, credited)
		if err != nil {
			return err
		}
		toBefore, toAfter, err := u.ledger.Credit(txCtx, src, refund)
		if err != nil {
			return err
		}
		r.FromBalanceBefore, r.FromBalanceAfter = nullDecimal(fromBefore), nullDecimal(fromAfter)
		r.ToBalanceBefore, r.ToBalanceAfter = nullDecimal(toBefore), nullDecimal(toAfter)
		if err := u.transition(txCtx, r, entities.TransactionStatusCompleted, &actorID, reason); err != nil {
			return err
		}
		if err := u.txnRepo.Update(txCtx, r); err != nil {
			return err
		}

		if err := u.transition(txCtx, t, entities.TransactionStatusReversed, &actorID, reason); err != nil {
			return err
		}
		t.SetMeta("reversal_transaction_id", r.ID.String())
		if err := u.txnRepo.Update(txCtx, t); err != nil {
			return err
		}
		if err := u.ledger.ReleaseTransactionHolds(txCtx, t.ID); err != nil {
			return err
		}
		if err := u.audit.Record(txCtx, AuditEntry{
			EventType:    "transaction.reversed",
			Category:     entities.AuditCategoryTransaction,
			Severity:     entities.SeverityWarning,
			ActorID:      &actorID,
			Action:       "reverse",
			ResourceType: "transaction",
			ResourceID:   t.ID.String(),
			Request:      map[string]interface{}{"reason": reason},
			OldValues:    map[string]interface{}{"status": string(entities.TransactionStatusCompleted)},
			NewValues:    map[string]interface{}{"status": string(t.Status), "reversal_id": r.ID.String()},
		}); err != nil {
			return err
		}
		original, reversal = t, r
		return nil
	})
	if err != nil {
		return nil, err
	}
	observeTransaction(original)
	observeTransaction(reversal)
	return original, nil
}

// Get returns a transaction with its fees. Non-staff callers only see their own.
func (u *TransactionUsecase) Get(ctx context.Context, userID, id uuid.UUID, staff bool) (*entities.Transaction, error) {
	txn, err := u.txnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !staff && !txn.IsParty(userID) {
		return nil, domainerrors.NotFound("transaction not found")
	}
	fees, err := u.txnRepo.ListFees(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	txn.Fees = fees
	return txn, nil
}

// Logs returns the status history of a transaction the caller can see.
func (u *TransactionUsecase) Logs(ctx context.Context, userID, id uuid.UUID, staff bool) ([]entities.TransactionLog, error) {
	if _, err := u.Get(ctx, userID, id, staff); err != nil {
		return nil, err
	}
	return u.txnRepo.ListLogs(ctx, id)
}

// List pages through transactions newest first.
func (u *TransactionUsecase) List(ctx context.Context, filter entities.TransactionFilter, page, limit int) ([]*entities.Transaction, int64, error) {
	_, limit, offset := pageOffset(page, limit)
	return u.txnRepo.List(ctx, filter, limit, offset)
}

// ListWalletTransactions lists transactions touching a wallet the user owns.
func (u *TransactionUsecase) ListWalletTransactions(ctx context.Context, userID, walletID uuid.UUID, page, limit int) ([]*entities.Transaction, int64, error) {
	if _, err := u.ledger.GetWallet(ctx, userID, walletID); err != nil {
		return nil, 0, err
	}
	return u.List(ctx, entities.TransactionFilter{WalletID: &walletID}, page, limit)
}
