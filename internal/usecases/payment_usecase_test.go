package usecases_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
)

func TestPaymentUsecase_LinkFlow(t *testing.T) {
	h := newHarness(t)
	vendor := h.user(entities.UserRoleVendor)
	payer := h.user(entities.UserRoleClient)
	collect := h.wallet(vendor.ID, "NGN", "")
	spend := h.wallet(payer.ID, "NGN", "5000")
	dollars := h.wallet(payer.ID, "USD", "100")

	_, err := h.payments.CreateLink(h.ctx, payer.ID, &entities.CreatePaymentLinkInput{WalletID: spend.ID, Title: "nope"})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden, "only vendors collect")

	link, err := h.payments.CreateLink(h.ctx, vendor.ID, &entities.CreatePaymentLinkInput{
		WalletID: collect.ID,
		Title:    "Haircut",
		Amount:   "1500",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, link.Slug)
	assert.True(t, link.Amount.Valid)

	_, err = h.payments.Pay(h.ctx, vendor.ID, &entities.PayInput{Slug: link.Slug, WalletID: collect.ID, PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrBadRequest, "vendors cannot pay their own link")

	_, err = h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{Slug: link.Slug, WalletID: dollars.ID, PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput, "currency must match")

	txn, err := h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{Slug: link.Slug, WalletID: spend.ID, Amount: "1", PIN: testPIN})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionTypePayment, txn.Type)
	assert.Equal(t, "3500.00", h.balance(spend.ID), "fixed links ignore the payer's amount")
	assert.Equal(t, "1500.00", h.balance(collect.ID))

	_, err = h.payments.DisableLink(h.ctx, vendor.ID, link.ID)
	require.NoError(t, err)
	_, err = h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{Slug: link.Slug, WalletID: spend.ID, PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestPaymentUsecase_OpenAmountLink(t *testing.T) {
	h := newHarness(t)
	vendor := h.user(entities.UserRoleVendor)
	payer := h.user(entities.UserRoleClient)
	collect := h.wallet(vendor.ID, "NGN", "")
	spend := h.wallet(payer.ID, "NGN", "5000")

	link, err := h.payments.CreateLink(h.ctx, vendor.ID, &entities.CreatePaymentLinkInput{WalletID: collect.ID, Title: "Tips"})
	require.NoError(t, err)
	assert.False(t, link.Amount.Valid)

	_, err = h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{Slug: link.Slug, WalletID: spend.ID, PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{Slug: link.Slug, WalletID: spend.ID, Amount: "250.50", PIN: testPIN})
	require.NoError(t, err)
	assert.Equal(t, "250.50", h.balance(collect.ID))
}

func TestPaymentUsecase_InvoiceFlow(t *testing.T) {
	h := newHarness(t)
	vendor := h.user(entities.UserRoleVendor)
	payer := h.user(entities.UserRoleClient)
	collect := h.wallet(vendor.ID, "NGN", "")
	spend := h.wallet(payer.ID, "NGN", "5000")

	_, err := h.payments.CreateInvoice(h.ctx, vendor.ID, &entities.CreateInvoiceInput{
		WalletID: collect.ID,
		Amount:   "100",
		DueDate:  time.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	inv, err := h.payments.CreateInvoice(h.ctx, vendor.ID, &entities.CreateInvoiceInput{
		WalletID:      collect.ID,
		CustomerEmail: "Buyer@Example.com",
		Description:   "Consulting",
		Amount:        "2000",
		DueDate:       time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", inv.CustomerEmail)
	assert.Equal(t, entities.InvoicePending, inv.Status)

	_, err = h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{InvoiceNumber: inv.Number, WalletID: spend.ID, PIN: "0000"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidPIN)
	pending, err := h.payments.GetInvoice(h.ctx, inv.Number)
	require.NoError(t, err)
	assert.Equal(t, entities.InvoicePending, pending.Status, "a failed payment leaves the invoice payable")

	txn, err := h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{InvoiceNumber: inv.Number, WalletID: spend.ID, PIN: testPIN})
	require.NoError(t, err)
	assert.Equal(t, "3000.00", h.balance(spend.ID))
	assert.Equal(t, "2000.00", h.balance(collect.ID))

	paid, err := h.payments.GetInvoice(h.ctx, inv.Number)
	require.NoError(t, err)
	assert.Equal(t, entities.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidTransactionID)
	assert.Equal(t, txn.ID, *paid.PaidTransactionID)

	_, err = h.payments.Pay(h.ctx, payer.ID, &entities.PayInput{InvoiceNumber: inv.Number, WalletID: spend.ID, PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
	assert.Equal(t, "3000.00", h.balance(spend.ID))

	_, err = h.payments.CancelInvoice(h.ctx, vendor.ID, inv.ID)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestPaymentUsecase_ExpireDue(t *testing.T) {
	h := newHarness(t)
	vendor := h.user(entities.UserRoleVendor)
	collect := h.wallet(vendor.ID, "NGN", "")

	inv, err := h.payments.CreateInvoice(h.ctx, vendor.ID, &entities.CreateInvoiceInput{
		WalletID: collect.ID,
		Amount:   "100",
		DueDate:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	freezeClock(t, time.Now().Add(2*time.Hour))
	n, err := h.maintenance.ExpirePayments(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.payments.GetInvoice(h.ctx, inv.Number)
	require.NoError(t, err)
	assert.Equal(t, entities.InvoiceExpired, got.Status)
}
