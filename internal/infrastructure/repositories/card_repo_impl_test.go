package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
)

func TestCardRepository_CRUD(t *testing.T) {
	db := newTestDB(t)
	repo := NewCardRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	card := &entities.Card{
		ID:             uuid.New(),
		UserID:         userID,
		WalletID:       uuid.New(),
		Provider:       "internal",
		ProviderCardID: "card_123",
		MaskedPAN:      "5399********1234",
		Last4:          "1234",
		Currency:       "NGN",
		Status:         entities.CardStatusActive,
		MonthlyLimit:   decimal.NewFromInt(100000),
		PeriodStart:    entities.MonthStart(time.Now()),
	}
	require.NoError(t, repo.Create(ctx, card))

	got, err := repo.GetByProviderCardID(ctx, "card_123")
	require.NoError(t, err)
	require.Equal(t, card.ID, got.ID)

	got.SpentThisMonth = decimal.NewFromInt(2500)
	got.Status = entities.CardStatusFrozen
	require.NoError(t, repo.Update(ctx, got))

	list, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, entities.CardStatusFrozen, list[0].Status)
	require.True(t, decimal.NewFromInt(2500).Equal(list[0].SpentThisMonth))

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestPaymentLinkAndInvoiceRepository_ExpireDue(t *testing.T) {
	db := newTestDB(t)
	links := NewPaymentLinkRepository(db)
	invoices := NewInvoiceRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	owner := uuid.New()

	stale := &entities.PaymentLink{ID: uuid.New(), OwnerID: owner, WalletID: uuid.New(), Slug: "stale", Title: "Old", Currency: "NGN", Status: entities.PaymentLinkActive, ExpiresAt: null.TimeFrom(now.Add(-time.Minute))}
	open := &entities.PaymentLink{ID: uuid.New(), OwnerID: owner, WalletID: uuid.New(), Slug: "open", Title: "Open", Currency: "NGN", Status: entities.PaymentLinkActive, Amount: decimal.NewNullDecimal(decimal.NewFromInt(500))}
	require.NoError(t, links.Create(ctx, stale))
	require.NoError(t, links.Create(ctx, open))
	require.ErrorIs(t, links.Create(ctx, &entities.PaymentLink{ID: uuid.New(), Slug: "open", Currency: "NGN", Status: entities.PaymentLinkActive}), domainerrors.ErrAlreadyExists)

	n, err := links.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	got, err := links.GetBySlug(ctx, "stale")
	require.NoError(t, err)
	require.Equal(t, entities.PaymentLinkExpired, got.Status)
	got, err = links.GetBySlug(ctx, "open")
	require.NoError(t, err)
	require.True(t, got.Amount.Valid)

	inv := &entities.Invoice{ID: uuid.New(), OwnerID: owner, WalletID: uuid.New(), Number: "INV-0001", CustomerEmail: "a@b.c", Amount: decimal.NewFromInt(10), Currency: "NGN", DueDate: now.Add(-time.Hour), Status: entities.InvoicePending}
	require.NoError(t, invoices.Create(ctx, inv))
	n, err = invoices.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	gotInv, err := invoices.GetByNumber(ctx, "INV-0001")
	require.NoError(t, err)
	require.Equal(t, entities.InvoiceExpired, gotInv.Status)
}
