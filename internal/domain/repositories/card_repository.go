package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"walletcore.backend/internal/domain/entities"
)

// CardRepository defines card data operations
type CardRepository interface {
	Create(ctx context.Context, card *entities.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Card, error)
	GetByProviderCardID(ctx context.Context, providerCardID string) (*entities.Card, error)
	Update(ctx context.Context, card *entities.Card) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error)
}

// PaymentLinkRepository defines payment link data operations
type PaymentLinkRepository interface {
	Create(ctx context.Context, link *entities.PaymentLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.PaymentLink, error)
	GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error)
	Update(ctx context.Context, link *entities.PaymentLink) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// InvoiceRepository defines invoice data operations
type InvoiceRepository interface {
	Create(ctx context.Context, inv *entities.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*entities.Invoice, error)
	Update(ctx context.Context, inv *entities.Invoice) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
