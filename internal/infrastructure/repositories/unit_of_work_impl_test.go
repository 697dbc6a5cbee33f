package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

func testCurrency(code string) *entities.Currency {
	return &entities.Currency{Code: code, Name: code, Symbol: code, DecimalPlaces: 2, ExchangeRateUSD: decimal.NewFromInt(1), IsActive: true}
}

func TestUnitOfWork_DoCommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}
	repo := NewCurrencyRepository(db)

	// commit path
	err := u.Do(context.Background(), func(ctx context.Context) error {
		return repo.Upsert(ctx, testCurrency("NGN"))
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Currency{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	// rollback path
	err = u.Do(context.Background(), func(ctx context.Context) error {
		if err := repo.Upsert(ctx, testCurrency("USD")); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	require.Error(t, err)

	require.NoError(t, db.Model(&models.Currency{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "second insert must be rolled back")
}

func TestUnitOfWork_DoRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}
	repo := NewCurrencyRepository(db)

	require.PanicsWithValue(t, "index out of range", func() {
		_ = u.Do(context.Background(), func(ctx context.Context) error {
			if err := repo.Upsert(ctx, testCurrency("GHS")); err != nil {
				return err
			}
			panic("index out of range")
		})
	})

	var count int64
	require.NoError(t, db.Model(&models.Currency{}).Count(&count).Error)
	require.Zero(t, count, "insert before the panic must be rolled back")

	// the connection is released, so later work commits normally
	require.NoError(t, u.Do(context.Background(), func(ctx context.Context) error {
		return repo.Upsert(ctx, testCurrency("GHS"))
	}))
	require.NoError(t, db.Model(&models.Currency{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUnitOfWork_NestedDoReusesTransaction(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}
	repo := NewCurrencyRepository(db)

	err := u.Do(context.Background(), func(ctx context.Context) error {
		outer := GetDB(ctx, db)
		return u.Do(ctx, func(inner context.Context) error {
			require.Same(t, outer, GetDB(inner, db))
			if err := repo.Upsert(inner, testCurrency("KES")); err != nil {
				return err
			}
			return errors.New("inner failure")
		})
	})
	require.Error(t, err)

	_, err = repo.GetByCode(context.Background(), "KES")
	require.Error(t, err, "inner write belongs to the rolled back outer transaction")
}

func TestUnitOfWork_WithLockAndGetDB(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}

	ctx := u.WithLock(context.Background())
	require.NotNil(t, lockedDB(ctx, db))
	require.NotNil(t, u.GetDB(context.Background()))

	tx := db.Begin()
	txCtx := context.WithValue(context.Background(), txKey, tx)
	require.Same(t, tx, u.GetDB(txCtx))

	lockedCtx := u.WithLock(txCtx)
	stmt := lockedDB(lockedCtx, db).Session(&gorm.Session{DryRun: true}).Find(&[]models.Wallet{}).Statement
	_, hasLock := stmt.Clauses["FOR"]
	require.True(t, hasLock, "locking clause applied inside a transaction")
	tx.Rollback()
}

func TestUnitOfWork_DoBeginFailure(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = u.Do(context.Background(), func(ctx context.Context) error {
		_ = ctx
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to begin transaction")
}

func TestUnitOfWork_DoCommitFailure_WithHook(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}
	repo := NewWalletRepository(db)

	origCommit := commitTx
	t.Cleanup(func() { commitTx = origCommit })
	commitTx = func(tx *gorm.DB) error {
		_ = tx
		return errors.New("forced commit fail")
	}

	err := u.Do(context.Background(), func(ctx context.Context) error {
		_, err := repo.AccountNumberExists(ctx, uuid.NewString())
		return err
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to commit transaction")
}
