package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(models.All()...), "migrate")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func seedWallet(t *testing.T, repo *WalletRepository, userID uuid.UUID, currency string, balance string) *entities.Wallet {
	t.Helper()
	amount := decimal.RequireFromString(balance)
	w := &entities.Wallet{
		ID:               uuid.New(),
		UserID:           userID,
		Currency:         currency,
		Type:             entities.WalletTypeMain,
		Balance:          amount,
		AvailableBalance: amount,
		Status:           entities.WalletStatusActive,
		AccountNumber:    fmt.Sprintf("%010d", time.Now().UnixNano()%10000000000),
		AccountName:      "Test Holder",
		IsDefault:        true,
	}
	require.NoError(t, repo.Create(context.Background(), w))
	return w
}
