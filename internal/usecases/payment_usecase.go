package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/crypto"
	"walletcore.backend/pkg/utils"
)

// PaymentUsecase manages vendor payment links and invoices and settles them
// as wallet-to-wallet payments.
type PaymentUsecase struct {
	uow          repositories.UnitOfWork
	linkRepo     repositories.PaymentLinkRepository
	invoiceRepo  repositories.InvoiceRepository
	userRepo     repositories.UserRepository
	ledger       *LedgerUsecase
	transactions *TransactionUsecase
	notifier     Notifier
	audit        *AuditUsecase
}

// NewPaymentUsecase creates a new payment usecase
func NewPaymentUsecase(
	uow repositories.UnitOfWork,
	linkRepo repositories.PaymentLinkRepository,
	invoiceRepo repositories.InvoiceRepository,
	userRepo repositories.UserRepository,
	ledger *LedgerUsecase,
	transactions *TransactionUsecase,
	notifier Notifier,
	audit *AuditUsecase,
) *PaymentUsecase {
	return &PaymentUsecase{
		uow:          uow,
		linkRepo:     linkRepo,
		invoiceRepo:  invoiceRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		transactions: transactions,
		notifier:     notifier,
		audit:        audit,
	}
}

// vendorWallet checks the caller is a vendor and owns an active wallet.
func (u *PaymentUsecase) vendorWallet(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != entities.UserRoleVendor {
		return nil, domainerrors.Forbidden("only vendors can collect payments")
	}
	wallet, err := u.ledger.GetWallet(ctx, userID, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, domainerrors.InvalidState("wallet is " + string(wallet.Status))
	}
	return wallet, nil
}

// CreateLink creates a shareable link. An empty amount lets the payer choose.
func (u *PaymentUsecase) CreateLink(ctx context.Context, userID uuid.UUID, input *entities.CreatePaymentLinkInput) (*entities.PaymentLink, error) {
	wallet, err := u.vendorWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	cur, err := u.ledger.Currency(ctx, wallet.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := parseOptionalAmount(input.Amount, cur, "amount")
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	if input.ExpiresAt.Valid && !input.ExpiresAt.Time.After(now) {
		return nil, domainerrors.Validation("expiry must be in the future", map[string]string{"expiresAt": "must be in the future"})
	}
	slug, err := crypto.GenerateRandomToken(slugBytes)
	if err != nil {
		return nil, err
	}
	link := &entities.PaymentLink{
		ID:          utils.GenerateUUIDv7(),
		OwnerID:     userID,
		WalletID:    wallet.ID,
		Slug:        slug,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Currency:    wallet.Currency,
		Status:      entities.PaymentLinkActive,
		ExpiresAt:   input.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if amount.IsPositive() {
		link.Amount = decimal.NewNullDecimal(amount)
	}
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.linkRepo.Create(txCtx, link); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "payment_link.created",
			Category:     entities.AuditCategoryPayment,
			ActorID:      &userID,
			Action:       "create",
			ResourceType: "payment_link",
			ResourceID:   link.ID.String(),
			NewValues:    map[string]interface{}{"slug": slug, "amount": amount.String(), "currency": link.Currency},
		})
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetLink resolves a link by slug for the public payment page.
func (u *PaymentUsecase) GetLink(ctx context.Context, slug string) (*entities.PaymentLink, error) {
	return u.linkRepo.GetBySlug(ctx, strings.TrimSpace(slug))
}

// DisableLink stops a link from accepting payments.
func (u *PaymentUsecase) DisableLink(ctx context.Context, userID, linkID uuid.UUID) (*entities.PaymentLink, error) {
	link, err := u.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != userID {
		return nil, domainerrors.NotFound("payment link not found")
	}
	if link.Status != entities.PaymentLinkActive {
		return nil, domainerrors.InvalidState("payment link is " + string(link.Status))
	}
	link.Status = entities.PaymentLinkDisabled
	link.UpdatedAt = nowFunc()
	if err := u.linkRepo.Update(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// CreateInvoice bills a customer in the wallet's currency.
func (u *PaymentUsecase) CreateInvoice(ctx context.Context, userID uuid.UUID, input *entities.CreateInvoiceInput) (*entities.Invoice, error) {
	wallet, err := u.vendorWallet(ctx, userID, input.WalletID)
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
	now := nowFunc()
	if !input.DueDate.After(now) {
		return nil, domainerrors.Validation("due date must be in the future", map[string]string{"dueDate": "must be in the future"})
	}
	inv := &entities.Invoice{
		ID:            utils.GenerateUUIDv7(),
		OwnerID:       userID,
		WalletID:      wallet.ID,
		Number:        newReference(refPrefixBill),
		CustomerEmail: strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		Description:   input.Description,
		Amount:        amount,
		Currency:      wallet.Currency,
		DueDate:       input.DueDate.UTC(),
		Status:        entities.InvoicePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.invoiceRepo.Create(txCtx, inv); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "invoice.created",
			Category:     entities.AuditCategoryPayment,
			ActorID:      &userID,
			Action:       "create",
			ResourceType: "invoice",
			ResourceID:   inv.ID.String(),
			NewValues:    map[string]interface{}{"number": inv.Number, "amount": amount.String(), "currency": inv.Currency},
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInvoice resolves an invoice by number.
func (u *PaymentUsecase) GetInvoice(ctx context.Context, number string) (*entities.Invoice, error) {
	return u.invoiceRepo.GetByNumber(ctx, strings.TrimSpace(number))
}

// CancelInvoice withdraws an unpaid invoice.
func (u *PaymentUsecase) CancelInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*entities.Invoice, error) {
	inv, err := u.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.OwnerID != userID {
		return nil, domainerrors.NotFound("invoice not found")
	}
	if inv.Status != entities.InvoicePending {
		return nil, domainerrors.InvalidState("invoice is " + string(inv.Status))
	}
	inv.Status = entities.InvoiceCancelled
	inv.UpdatedAt = nowFunc()
	if err := u.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Pay settles a link or an invoice from one of the payer's wallets.
func (u *PaymentUsecase) Pay(ctx context.Context, userID uuid.UUID, input *entities.PayInput) (*entities.Transaction, error) {
	switch {
	case input.Slug != "" && input.InvoiceNumber != "":
		return nil, domainerrors.Validation("pay a link or an invoice, not both", map[string]string{"slug": "provide slug or invoiceNumber"})
	case input.Slug != "":
		return u.payLink(ctx, userID, input)
	case input.InvoiceNumber != "":
		return u.payInvoice(ctx, userID, input)
	}
	return nil, domainerrors.Validation("payment target required", map[string]string{"slug": "provide slug or invoiceNumber"})
}

func (u *PaymentUsecase) payLink(ctx context.Context, userID uuid.UUID, input *entities.PayInput) (*entities.Transaction, error) {
	link, err := u.linkRepo.GetBySlug(ctx, strings.TrimSpace(input.Slug))
	if err != nil {
		return nil, err
	}
	if link.Status != entities.PaymentLinkActive || (link.ExpiresAt.Valid && !nowFunc().Before(link.ExpiresAt.Time)) {
		return nil, domainerrors.InvalidState("payment link is no longer active")
	}
	if link.OwnerID == userID {
		return nil, domainerrors.BadRequest("cannot pay your own payment link")
	}
	amount := input.Amount
	if link.Amount.Valid {
		amount = link.Amount.Decimal.String()
	}
	if strings.TrimSpace(amount) == "" {
		return nil, domainerrors.Validation("amount required", map[string]string{"amount": "required for open-amount links"})
	}
	if err := u.sameCurrency(ctx, userID, input.WalletID, link.Currency); err != nil {
		return nil, err
	}
	return u.transactions.Transfer(ctx, userID, &entities.TransferInput{
		FromWalletID: input.WalletID,
		ToWalletID:   &link.WalletID,
		Amount:       amount,
		Description:  "Payment: " + link.Title,
		PIN:          input.PIN,
		IP:           input.IP,
		Type:         entities.TransactionTypePayment,
		RelatedID:    &link.ID,
	})
}

func (u *PaymentUsecase) payInvoice(ctx context.Context, userID uuid.UUID, input *entities.PayInput) (*entities.Transaction, error) {
	inv, err := u.invoiceRepo.GetByNumber(ctx, strings.TrimSpace(input.InvoiceNumber))
	if err != nil {
		return nil, err
	}
	if inv.Status != entities.InvoicePending {
		return nil, domainerrors.InvalidState("invoice is " + string(inv.Status))
	}
	if inv.OwnerID == userID {
		return nil, domainerrors.BadRequest("cannot pay your own invoice")
	}
	if err := u.sameCurrency(ctx, userID, input.WalletID, inv.Currency); err != nil {
		return nil, err
	}
	// The invoice stays locked while the transfer runs in the same unit of
	// work, so concurrent payers cannot both settle it.
	var txn *entities.Transaction
	err = u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		locked, err := u.invoiceRepo.GetByID(u.uow.WithLock(txCtx), inv.ID)
		if err != nil {
			return err
		}
		if locked.Status != entities.InvoicePending {
			return domainerrors.InvalidState("invoice is " + string(locked.Status))
		}
		txn, err = u.transactions.Transfer(txCtx, userID, &entities.TransferInput{
			FromWalletID: input.WalletID,
			ToWalletID:   &locked.WalletID,
			Amount:       locked.Amount.String(),
			Description:  "Invoice " + locked.Number,
			PIN:          input.PIN,
			IP:           input.IP,
			Type:         entities.TransactionTypePayment,
			RelatedID:    &locked.ID,
		})
		if err != nil {
			return err
		}
		now := nowFunc()
		locked.Status = entities.InvoicePaid
		locked.PaidTransactionID = &txn.ID
		locked.PaidAt = null.TimeFrom(now)
		locked.UpdatedAt = now
		if err := u.invoiceRepo.Update(txCtx, locked); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "invoice.paid",
			Category:     entities.AuditCategoryPayment,
			ActorID:      &userID,
			Action:       "update",
			ResourceType: "invoice",
			ResourceID:   locked.ID.String(),
			OldValues:    map[string]interface{}{"status": string(entities.InvoicePending)},
			NewValues:    map[string]interface{}{"status": string(entities.InvoicePaid), "transaction_id": txn.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (u *PaymentUsecase) sameCurrency(ctx context.Context, userID, walletID uuid.UUID, currency string) error {
	wallet, err := u.ledger.GetWallet(ctx, userID, walletID)
	if err != nil {
		return err
	}
	if wallet.Currency != currency {
		return domainerrors.Validation("currency mismatch", map[string]string{"walletId": "wallet must be in " + currency})
	}
	return nil
}

// ExpireDue marks lapsed links and overdue invoices expired.
func (u *PaymentUsecase) ExpireDue(ctx context.Context) (int64, error) {
	now := nowFunc()
	links, err := u.linkRepo.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}
	invoices, err := u.invoiceRepo.ExpireDue(ctx, now)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return links, err
	}
	return links + invoices, nil
}
