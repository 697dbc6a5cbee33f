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

func TestCurrencyRepository_UpsertAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewCurrencyRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testCurrency("ngn")))
	usd := testCurrency("USD")
	usd.IsActive = false
	require.NoError(t, repo.Upsert(ctx, usd))

	got, err := repo.GetByCode(ctx, "NGN")
	require.NoError(t, err)
	require.Equal(t, int32(2), got.DecimalPlaces)

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)

	usd.IsActive = true
	usd.Name = "US Dollar"
	require.NoError(t, repo.Upsert(ctx, usd))
	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "US Dollar", all[1].Name)

	_, err = repo.GetByCode(ctx, "EUR")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestWalletRepository_CRUD(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	w := seedWallet(t, repo, userID, "NGN", "1000.50")

	got, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1000.50").Equal(got.Balance))
	require.Equal(t, entities.WalletTypeMain, got.Type)

	byAcct, err := repo.GetByAccountNumber(ctx, w.AccountNumber)
	require.NoError(t, err)
	require.Equal(t, w.ID, byAcct.ID)

	def, err := repo.GetDefault(ctx, userID, "NGN")
	require.NoError(t, err)
	require.Equal(t, w.ID, def.ID)

	exists, err := repo.AccountNumberExists(ctx, w.AccountNumber)
	require.NoError(t, err)
	require.True(t, exists)

	n, err := repo.CountByUserCurrency(ctx, userID, "NGN")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got.Balance = decimal.NewFromInt(10)
	got.AvailableBalance = decimal.NewFromInt(10)
	got.LastTransactionAt = null.TimeFrom(time.Now())
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByUserCurrencyType(ctx, userID, "NGN", entities.WalletTypeMain)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(again.Balance))
	require.True(t, again.LastTransactionAt.Valid)

	list, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestWalletRepository_DuplicateTypePerCurrency(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	userID := uuid.New()
	seedWallet(t, repo, userID, "NGN", "0")

	dup := &entities.Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Currency:      "NGN",
		Type:          entities.WalletTypeMain,
		Status:        entities.WalletStatusActive,
		AccountNumber: "9999999999",
	}
	err := repo.Create(context.Background(), dup)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestWalletRepository_NotFoundBranches(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = repo.GetByAccountNumber(ctx, "0000000000")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = repo.Update(ctx, &entities.Wallet{ID: uuid.New(), Type: entities.WalletTypeMain})
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestHoldRepository_ActiveAndExpired(t *testing.T) {
	db := newTestDB(t)
	wallets := NewWalletRepository(db)
	repo := NewHoldRepository(db)
	ctx := context.Background()
	w := seedWallet(t, wallets, uuid.New(), "NGN", "500")
	now := time.Now().UTC()
	txnID := uuid.New()

	h1 := &entities.Hold{ID: uuid.New(), WalletID: w.ID, Amount: decimal.NewFromInt(100), Status: entities.HoldStatusActive, TransactionID: &txnID}
	h2 := &entities.Hold{ID: uuid.New(), WalletID: w.ID, Amount: decimal.NewFromInt(50), Status: entities.HoldStatusActive, ExpiresAt: null.TimeFrom(now.Add(-time.Minute))}
	h3 := &entities.Hold{ID: uuid.New(), WalletID: w.ID, Amount: decimal.NewFromInt(25), Status: entities.HoldStatusReleased}
	for _, h := range []*entities.Hold{h1, h2, h3} {
		require.NoError(t, repo.Create(ctx, h))
	}

	sum, err := repo.SumActive(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(150).Equal(sum))

	byTxn, err := repo.ListActiveByTransaction(ctx, txnID)
	require.NoError(t, err)
	require.Len(t, byTxn, 1)

	expired, err := repo.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, h2.ID, expired[0].ID)

	h2.Status = entities.HoldStatusExpired
	h2.ReleasedAt = null.TimeFrom(now)
	require.NoError(t, repo.Update(ctx, h2))
	active, err := repo.ListActiveByWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
}
