package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"walletcore.backend/internal/domain/entities"
)

// TransactionRepository defines transaction data operations
type TransactionRepository interface {
	Create(ctx context.Context, txn *entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*entities.Transaction, error)
	GetByExternalReference(ctx context.Context, externalRef string) (*entities.Transaction, error)
	GetByProviderReference(ctx context.Context, providerRef string) (*entities.Transaction, error)
	Update(ctx context.Context, txn *entities.Transaction) error
	List(ctx context.Context, filter entities.TransactionFilter, limit, offset int) ([]*entities.Transaction, int64, error)
	// SumOutbound totals non-failed debits from a wallet since the given time.
	SumOutbound(ctx context.Context, walletID uuid.UUID, since time.Time) (decimal.Decimal, error)

	CreateFee(ctx context.Context, fee *entities.TransactionFee) error
	ListFees(ctx context.Context, transactionID uuid.UUID) ([]entities.TransactionFee, error)
	CreateLog(ctx context.Context, log *entities.TransactionLog) error
	ListLogs(ctx context.Context, transactionID uuid.UUID) ([]entities.TransactionLog, error)
}

// DisputeRepository defines dispute data operations
type DisputeRepository interface {
	Create(ctx context.Context, dispute *entities.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Dispute, error)
	GetOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*entities.Dispute, error)
	Update(ctx context.Context, dispute *entities.Dispute) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Dispute, int64, error)
}

// AuditRepository is insert-only.
type AuditRepository interface {
	Create(ctx context.Context, entry *entities.AuditLog) error
	List(ctx context.Context, filter entities.AuditFilter, limit, offset int) ([]*entities.AuditLog, int64, error)
}
