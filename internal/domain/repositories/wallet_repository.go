package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"walletcore.backend/internal/domain/entities"
)

// CurrencyRepository defines currency data operations
type CurrencyRepository interface {
	GetByCode(ctx context.Context, code string) (*entities.Currency, error)
	List(ctx context.Context, activeOnly bool) ([]*entities.Currency, error)
	Upsert(ctx context.Context, currency *entities.Currency) error
}

// WalletRepository defines wallet data operations. Reads honour the lock
// flag set by UnitOfWork.WithLock.
type WalletRepository interface {
	Create(ctx context.Context, wallet *entities.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*entities.Wallet, error)
	GetByUserCurrencyType(ctx context.Context, userID uuid.UUID, currency string, walletType entities.WalletType) (*entities.Wallet, error)
	GetDefault(ctx context.Context, userID uuid.UUID, currency string) (*entities.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error)
	CountByUserCurrency(ctx context.Context, userID uuid.UUID, currency string) (int64, error)
	AccountNumberExists(ctx context.Context, accountNumber string) (bool, error)
	Update(ctx context.Context, wallet *entities.Wallet) error
}

// HoldRepository defines hold data operations
type HoldRepository interface {
	Create(ctx context.Context, hold *entities.Hold) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Hold, error)
	Update(ctx context.Context, hold *entities.Hold) error
	ListActiveByWallet(ctx context.Context, walletID uuid.UUID) ([]*entities.Hold, error)
	ListActiveByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*entities.Hold, error)
	SumActive(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*entities.Hold, error)
}
