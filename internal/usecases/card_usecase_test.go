package usecases_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
)

func TestCardUsecase_IssueFundSpend(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	w := h.wallet(user.ID, "NGN", "10000")

	issued, err := h.cards.Create(h.ctx, user.ID, &entities.CreateCardInput{
		WalletID:     w.ID,
		MonthlyLimit: "5000",
	})
	require.NoError(t, err)
	card := issued.Card
	assert.Equal(t, entities.CardStatusActive, card.Status)
	assert.Equal(t, "virtual", card.CardType)
	assert.Len(t, issued.CVV, 3)
	assert.Contains(t, card.MaskedPAN, "******")
	assert.Equal(t, issued.CardNumber[len(issued.CardNumber)-4:], card.Last4)

	funding, err := h.cards.Fund(h.ctx, user.ID, card.ID, &entities.FundCardInput{Amount: "2000"})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionTypeCardFunding, funding.Type)
	assert.Equal(t, "10000.00", h.balance(w.ID), "funding moves no money")

	_, err = h.cards.Fund(h.ctx, user.ID, card.ID, &entities.FundCardInput{Amount: "20000"})
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientBalance)

	spend, err := h.cards.Spend(h.ctx, &entities.CardSpendInput{
		ProviderCardID:    card.ProviderCardID,
		Amount:            decimal.NewFromInt(3000),
		Merchant:          "Grocer",
		ExternalReference: "auth-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, spend.Status)
	assert.Equal(t, "7000.00", h.balance(w.ID))

	replay, err := h.cards.Spend(h.ctx, &entities.CardSpendInput{
		ProviderCardID:    card.ProviderCardID,
		Amount:            decimal.NewFromInt(3000),
		ExternalReference: "auth-1",
	})
	require.NoError(t, err)
	assert.Equal(t, spend.ID, replay.ID)
	assert.Equal(t, "7000.00", h.balance(w.ID))

	_, err = h.cards.Spend(h.ctx, &entities.CardSpendInput{
		ProviderCardID:    card.ProviderCardID,
		Amount:            decimal.NewFromInt(2500),
		ExternalReference: "auth-2",
	})
	assert.ErrorIs(t, err, domainerrors.ErrLimitExceeded)
	assert.Equal(t, "7000.00", h.balance(w.ID))

	got, err := h.cards.Get(h.ctx, user.ID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "3000.00", got.SpentThisMonth.StringFixed(2))

	updated, err := h.cards.Update(h.ctx, user.ID, card.ID, &entities.UpdateCardInput{MonthlyLimit: "0"})
	require.NoError(t, err)
	assert.True(t, updated.MonthlyLimit.IsZero())

	_, err = h.cards.Spend(h.ctx, &entities.CardSpendInput{
		ProviderCardID:    card.ProviderCardID,
		Amount:            decimal.NewFromInt(2500),
		ExternalReference: "auth-3",
	})
	require.NoError(t, err, "zero removes the limit")
	assert.Equal(t, "4500.00", h.balance(w.ID))
}

func TestCardUsecase_StatusTransitions(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	other := h.user(entities.UserRoleClient)
	w := h.wallet(user.ID, "NGN", "1000")

	issued, err := h.cards.Create(h.ctx, user.ID, &entities.CreateCardInput{WalletID: w.ID})
	require.NoError(t, err)
	id := issued.Card.ID

	_, err = h.cards.Freeze(h.ctx, other.ID, id)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound, "cards are scoped to their owner")

	frozen, err := h.cards.Freeze(h.ctx, user.ID, id)
	require.NoError(t, err)
	assert.Equal(t, entities.CardStatusFrozen, frozen.Status)

	_, err = h.cards.Freeze(h.ctx, user.ID, id)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	_, err = h.cards.Fund(h.ctx, user.ID, id, &entities.FundCardInput{Amount: "10"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	_, err = h.cards.Spend(h.ctx, &entities.CardSpendInput{
		ProviderCardID:    issued.Card.ProviderCardID,
		Amount:            decimal.NewFromInt(10),
		ExternalReference: "frozen-1",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	_, err = h.cards.Unfreeze(h.ctx, user.ID, id)
	require.NoError(t, err)

	blocked, err := h.cards.Block(h.ctx, user.ID, id)
	require.NoError(t, err)
	assert.Equal(t, entities.CardStatusBlocked, blocked.Status)

	_, err = h.cards.Unfreeze(h.ctx, user.ID, id)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState, "blocking is final")

	logs := h.auditLogs(entities.AuditFilter{Category: entities.AuditCategoryCard, ResourceID: id.String()})
	var warnings int
	for _, l := range logs {
		if l.Severity == entities.SeverityWarning {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)

	cards, err := h.cards.List(h.ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}
