package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

// CardRepository implements card data operations
type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *entities.Card) error {
	m := cardToModel(card)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	card.CreatedAt, card.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Card, error) {
	var m models.Card
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return cardToEntity(&m), nil
}

func (r *CardRepository) GetByProviderCardID(ctx context.Context, providerCardID string) (*entities.Card, error) {
	var m models.Card
	if err := lockedDB(ctx, r.db).Where("provider_card_id = ?", providerCardID).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return cardToEntity(&m), nil
}

func (r *CardRepository) Update(ctx context.Context, card *entities.Card) error {
	card.UpdatedAt = time.Now()
	m := cardToModel(card)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *CardRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error) {
	var rows []models.Card
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.Card, 0, len(rows))
	for i := range rows {
		out = append(out, cardToEntity(&rows[i]))
	}
	return out, nil
}

func cardToModel(c *entities.Card) *models.Card {
	return &models.Card{
		ID:             c.ID,
		UserID:         c.UserID,
		WalletID:       c.WalletID,
		Provider:       c.Provider,
		ProviderCardID: c.ProviderCardID,
		MaskedPAN:      c.MaskedPAN,
		Last4:          c.Last4,
		Expiry:         c.Expiry,
		Brand:          c.Brand,
		CardType:       c.CardType,
		Currency:       c.Currency,
		Status:         string(c.Status),
		MonthlyLimit:   c.MonthlyLimit,
		SpentThisMonth: c.SpentThisMonth,
		PeriodStart:    c.PeriodStart,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func cardToEntity(m *models.Card) *entities.Card {
	return &entities.Card{
		ID:             m.ID,
		UserID:         m.UserID,
		WalletID:       m.WalletID,
		Provider:       m.Provider,
		ProviderCardID: m.ProviderCardID,
		MaskedPAN:      m.MaskedPAN,
		Last4:          m.Last4,
		Expiry:         m.Expiry,
		Brand:          m.Brand,
		CardType:       m.CardType,
		Currency:       m.Currency,
		Status:         entities.CardStatus(m.Status),
		MonthlyLimit:   m.MonthlyLimit,
		SpentThisMonth: m.SpentThisMonth,
		PeriodStart:    m.PeriodStart,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// PaymentLinkRepository implements payment link data operations
type PaymentLinkRepository struct {
	db *gorm.DB
}

func NewPaymentLinkRepository(db *gorm.DB) *PaymentLinkRepository {
	return &PaymentLinkRepository{db: db}
}

func (r *PaymentLinkRepository) Create(ctx context.Context, link *entities.PaymentLink) error {
	m := linkToModel(link)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	link.CreatedAt, link.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *PaymentLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.PaymentLink, error) {
	var m models.PaymentLink
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return linkToEntity(&m), nil
}

func (r *PaymentLinkRepository) GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error) {
	var m models.PaymentLink
	if err := GetDB(ctx, r.db).Where("slug = ?", slug).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return linkToEntity(&m), nil
}

func (r *PaymentLinkRepository) Update(ctx context.Context, link *entities.PaymentLink) error {
	link.UpdatedAt = time.Now()
	m := linkToModel(link)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

// ExpireDue flips active links past their expiry to expired.
func (r *PaymentLinkRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&models.PaymentLink{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(entities.PaymentLinkActive), now).
		Updates(map[string]interface{}{"status": string(entities.PaymentLinkExpired), "updated_at": now})
	return res.RowsAffected, mapError(res.Error)
}

func linkToModel(l *entities.PaymentLink) *models.PaymentLink {
	return &models.PaymentLink{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		WalletID:    l.WalletID,
		Slug:        l.Slug,
		Title:       l.Title,
		Description: l.Description,
		Amount:      l.Amount,
		Currency:    l.Currency,
		Status:      string(l.Status),
		ExpiresAt:   l.ExpiresAt.Ptr(),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func linkToEntity(m *models.PaymentLink) *entities.PaymentLink {
	return &entities.PaymentLink{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		WalletID:    m.WalletID,
		Slug:        m.Slug,
		Title:       m.Title,
		Description: m.Description,
		Amount:      m.Amount,
		Currency:    m.Currency,
		Status:      entities.PaymentLinkStatus(m.Status),
		ExpiresAt:   null.TimeFromPtr(m.ExpiresAt),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// InvoiceRepository implements invoice data operations
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *entities.Invoice) error {
	m := invoiceToModel(inv)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	inv.CreatedAt, inv.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Invoice, error) {
	var m models.Invoice
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return invoiceToEntity(&m), nil
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*entities.Invoice, error) {
	var m models.Invoice
	if err := lockedDB(ctx, r.db).Where("number = ?", number).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return invoiceToEntity(&m), nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *entities.Invoice) error {
	inv.UpdatedAt = time.Now()
	m := invoiceToModel(inv)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

// ExpireDue flips pending invoices past their due date to expired.
func (r *InvoiceRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&models.Invoice{}).
		Where("status = ? AND due_date <= ?", string(entities.InvoicePending), now).
		Updates(map[string]interface{}{"status": string(entities.InvoiceExpired), "updated_at": now})
	return res.RowsAffected, mapError(res.Error)
}

func invoiceToModel(i *entities.Invoice) *models.Invoice {
	return &models.Invoice{
		ID:                i.ID,
		OwnerID:           i.OwnerID,
		WalletID:          i.WalletID,
		Number:            i.Number,
		CustomerEmail:     i.CustomerEmail,
		Description:       i.Description,
		Amount:            i.Amount,
		Currency:          i.Currency,
		DueDate:           i.DueDate,
		Status:            string(i.Status),
		PaidTransactionID: i.PaidTransactionID,
		PaidAt:            i.PaidAt.Ptr(),
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

func invoiceToEntity(m *models.Invoice) *entities.Invoice {
	return &entities.Invoice{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		WalletID:          m.WalletID,
		Number:            m.Number,
		CustomerEmail:     m.CustomerEmail,
		Description:       m.Description,
		Amount:            m.Amount,
		Currency:          m.Currency,
		DueDate:           m.DueDate,
		Status:            entities.InvoiceStatus(m.Status),
		PaidTransactionID: m.PaidTransactionID,
		PaidAt:            null.TimeFromPtr(m.PaidAt),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
