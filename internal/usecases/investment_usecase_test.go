package usecases_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/usecases"
)

func TestExpectedReturns(t *testing.T) {
	cases := []struct {
		principal, rate string
		days            int
		want            string
	}{
		{"100000", "10", 90, "2465.75"},
		{"100000", "10", 365, "10000.00"},
		{"5000", "12.5", 30, "51.37"},
		{"0", "10", 90, "0.00"},
	}
	for _, tc := range cases {
		got := usecases.ExpectedReturns(decimal.RequireFromString(tc.principal), decimal.RequireFromString(tc.rate), tc.days, 2)
		assert.Equal(t, tc.want, got.StringFixed(2), "%s at %s%% for %d days", tc.principal, tc.rate, tc.days)
	}
}

func TestInvestmentUsecase_OpenPayReturnsAndMature(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	w := h.wallet(user.ID, "NGN", "200000")

	product, err := h.investments.CreateProduct(h.ctx, &usecases.ProductInput{
		Name:                "Quarterly note",
		Currency:            "ngn",
		InterestRate:        "10",
		DurationDays:        90,
		MinAmount:           "10000",
		PayoutFrequencyDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "NGN", product.Currency)

	_, err = h.investments.Open(h.ctx, user.ID, &entities.OpenInvestmentInput{ProductID: product.ID, WalletID: w.ID, Amount: "500", PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput, "below minimum")

	_, err = h.investments.Open(h.ctx, user.ID, &entities.OpenInvestmentInput{ProductID: product.ID, WalletID: w.ID, Amount: "100000", AutoRenew: true, PIN: testPIN})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput, "product does not renew")

	_, err = h.investments.Open(h.ctx, user.ID, &entities.OpenInvestmentInput{ProductID: product.ID, WalletID: w.ID, Amount: "100000", PIN: "0000"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPIN)
	assert.Equal(t, "200000.00", h.balance(w.ID))

	inv, err := h.investments.Open(h.ctx, user.ID, &entities.OpenInvestmentInput{ProductID: product.ID, WalletID: w.ID, Amount: "100000", PIN: testPIN})
	require.NoError(t, err)
	assert.Equal(t, "2465.75", inv.ExpectedReturns.StringFixed(2))
	assert.Equal(t, "100000.00", h.balance(w.ID))

	_, returns, err := h.investments.Get(h.ctx, user.ID, inv.ID)
	require.NoError(t, err)
	require.Len(t, returns, 3)
	sum := decimal.Zero
	for _, r := range returns {
		sum = sum.Add(r.Amount)
	}
	assert.True(t, sum.Equal(inv.ExpectedReturns), "the schedule adds up to the expected returns")

	freezeClock(t, inv.StartDate.AddDate(0, 0, 31))
	paid, err := h.investments.ProcessReturns(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
	assert.Equal(t, "100821.92", h.balance(w.ID))

	freezeClock(t, inv.MaturityDate.Add(time.Hour))
	matured, err := h.investments.ProcessMaturity(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, matured)
	assert.Equal(t, "202465.75", h.balance(w.ID), "principal plus every return, paid exactly once")

	paid, err = h.investments.ProcessReturns(h.ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, paid)

	done, err := h.investments.RecalculatePortfolios(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	portfolio, err := h.investments.Portfolio(h.ctx, user.ID, "ngn")
	require.NoError(t, err)
	assert.Equal(t, 1, portfolio.MaturedCount)
	assert.Equal(t, "2465.75", portfolio.TotalReturns.StringFixed(2))
	assert.True(t, portfolio.TotalInvested.IsZero())
}

func TestInvestmentUsecase_AutoRenew(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	w := h.wallet(user.ID, "NGN", "100000")

	product, err := h.investments.CreateProduct(h.ctx, &usecases.ProductInput{
		Name:            "Rolling 30",
		Currency:        "NGN",
		InterestRate:    "8",
		DurationDays:    30,
		AllowsAutoRenew: true,
	})
	require.NoError(t, err)

	inv, err := h.investments.Open(h.ctx, user.ID, &entities.OpenInvestmentInput{
		ProductID: product.ID, WalletID: w.ID, Amount: "50000", AutoRenew: true, PIN: testPIN,
	})
	require.NoError(t, err)

	freezeClock(t, inv.MaturityDate.Add(time.Minute))
	n, err := h.investments.ProcessMaturity(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	investments, err := h.investments.List(h.ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, investments, 2)
	var old, next *entities.Investment
	for _, i := range investments {
		if i.ID == inv.ID {
			old = i
		} else {
			next = i
		}
	}
	require.NotNil(t, old)
	require.NotNil(t, next)
	assert.Equal(t, entities.InvestmentStatusRenewed, old.Status)
	assert.Equal(t, entities.InvestmentStatusActive, next.Status)
	require.NotNil(t, next.RenewedFromID)
	assert.Equal(t, inv.ID, *next.RenewedFromID)

	// only the returns stay in the wallet
	expected := decimal.NewFromInt(50000).Add(inv.ExpectedReturns)
	assert.Equal(t, expected.StringFixed(2), h.balance(w.ID))
}
