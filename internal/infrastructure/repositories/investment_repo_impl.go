package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	domainRepos "walletcore.backend/internal/domain/repositories"
	"walletcore.backend/internal/infrastructure/models"
)

// InvestmentRepository implements investment data operations
type InvestmentRepository struct {
	db *gorm.DB
}

func NewInvestmentRepository(db *gorm.DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

func (r *InvestmentRepository) CreateProduct(ctx context.Context, p *entities.InvestmentProduct) error {
	m := &models.InvestmentProduct{
		ID:                  p.ID,
		Name:                p.Name,
		Currency:            p.Currency,
		InterestRate:        p.InterestRate,
		DurationDays:        p.DurationDays,
		MinAmount:           p.MinAmount,
		AllowsAutoRenew:     p.AllowsAutoRenew,
		PayoutFrequencyDays: p.PayoutFrequencyDays,
		IsActive:            p.IsActive,
		CreatedAt:           p.CreatedAt,
	}
	return mapError(GetDB(ctx, r.db).Create(m).Error)
}

func (r *InvestmentRepository) GetProduct(ctx context.Context, id uuid.UUID) (*entities.InvestmentProduct, error) {
	var m models.InvestmentProduct
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return productToEntity(&m), nil
}

func (r *InvestmentRepository) ListProducts(ctx context.Context) ([]*entities.InvestmentProduct, error) {
	var rows []models.InvestmentProduct
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.InvestmentProduct, 0, len(rows))
	for i := range rows {
		out = append(out, productToEntity(&rows[i]))
	}
	return out, nil
}

func productToEntity(m *models.InvestmentProduct) *entities.InvestmentProduct {
	return &entities.InvestmentProduct{
		ID:                  m.ID,
		Name:                m.Name,
		Currency:            m.Currency,
		InterestRate:        m.InterestRate,
		DurationDays:        m.DurationDays,
		MinAmount:           m.MinAmount,
		AllowsAutoRenew:     m.AllowsAutoRenew,
		PayoutFrequencyDays: m.PayoutFrequencyDays,
		IsActive:            m.IsActive,
		CreatedAt:           m.CreatedAt,
	}
}

func (r *InvestmentRepository) Create(ctx context.Context, inv *entities.Investment) error {
	m := investmentToModel(inv)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	inv.CreatedAt, inv.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	var m models.Investment
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return investmentToEntity(&m), nil
}

func (r *InvestmentRepository) Update(ctx context.Context, inv *entities.Investment) error {
	inv.UpdatedAt = time.Now()
	m := investmentToModel(inv)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *InvestmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error) {
	return r.listInvestments(GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC"))
}

// ListDueForMaturity returns active investments whose maturity date has passed.
func (r *InvestmentRepository) ListDueForMaturity(ctx context.Context, now time.Time, limit int) ([]*entities.Investment, error) {
	return r.listInvestments(GetDB(ctx, r.db).
		Where("status = ? AND maturity_date <= ?", string(entities.InvestmentStatusActive), now).
		Order("maturity_date ASC").
		Limit(limit))
}

func (r *InvestmentRepository) listInvestments(q *gorm.DB) ([]*entities.Investment, error) {
	var rows []models.Investment
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.Investment, 0, len(rows))
	for i := range rows {
		out = append(out, investmentToEntity(&rows[i]))
	}
	return out, nil
}

func (r *InvestmentRepository) CreateReturn(ctx context.Context, ret *entities.InvestmentReturn) error {
	return mapError(GetDB(ctx, r.db).Create(returnToModel(ret)).Error)
}

func (r *InvestmentRepository) GetReturn(ctx context.Context, id uuid.UUID) (*entities.InvestmentReturn, error) {
	var m models.InvestmentReturn
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return returnToEntity(&m), nil
}

func (r *InvestmentRepository) UpdateReturn(ctx context.Context, ret *entities.InvestmentReturn) error {
	m := returnToModel(ret)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *InvestmentRepository) ListReturns(ctx context.Context, investmentID uuid.UUID) ([]*entities.InvestmentReturn, error) {
	return r.listReturns(GetDB(ctx, r.db).Where("investment_id = ?", investmentID).Order("payout_date ASC"))
}

// ListDueReturns returns unpaid returns due by now whose investment is still active.
func (r *InvestmentRepository) ListDueReturns(ctx context.Context, now time.Time, limit int) ([]*entities.InvestmentReturn, error) {
	active := GetDB(ctx, r.db).Model(&models.Investment{}).Select("id").Where("status = ?", string(entities.InvestmentStatusActive))
	return r.listReturns(GetDB(ctx, r.db).
		Where("is_paid = ? AND payout_date <= ? AND investment_id IN (?)", false, now, active).
		Order("payout_date ASC").
		Limit(limit))
}

func (r *InvestmentRepository) listReturns(q *gorm.DB) ([]*entities.InvestmentReturn, error) {
	var rows []models.InvestmentReturn
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.InvestmentReturn, 0, len(rows))
	for i := range rows {
		out = append(out, returnToEntity(&rows[i]))
	}
	return out, nil
}

// UpsertPortfolio writes the aggregate row for (user, currency).
func (r *InvestmentRepository) UpsertPortfolio(ctx context.Context, p *entities.Portfolio) error {
	db := GetDB(ctx, r.db)
	res := db.Model(&models.Portfolio{}).
		Where("user_id = ? AND currency = ?", p.UserID, p.Currency).
		Updates(map[string]interface{}{
			"total_invested":  p.TotalInvested,
			"total_returns":   p.TotalReturns,
			"active_count":    p.ActiveCount,
			"matured_count":   p.MaturedCount,
			"recalculated_at": p.RecalculatedAt,
		})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return mapError(db.Create(&models.Portfolio{
		ID:             p.ID,
		UserID:         p.UserID,
		Currency:       p.Currency,
		TotalInvested:  p.TotalInvested,
		TotalReturns:   p.TotalReturns,
		ActiveCount:    p.ActiveCount,
		MaturedCount:   p.MaturedCount,
		RecalculatedAt: p.RecalculatedAt,
	}).Error)
}

func (r *InvestmentRepository) GetPortfolio(ctx context.Context, userID uuid.UUID, currency string) (*entities.Portfolio, error) {
	var m models.Portfolio
	if err := GetDB(ctx, r.db).Where("user_id = ? AND currency = ?", userID, currency).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return &entities.Portfolio{
		ID:             m.ID,
		UserID:         m.UserID,
		Currency:       m.Currency,
		TotalInvested:  m.TotalInvested,
		TotalReturns:   m.TotalReturns,
		ActiveCount:    m.ActiveCount,
		MaturedCount:   m.MaturedCount,
		RecalculatedAt: m.RecalculatedAt,
	}, nil
}

// ListInvestorKeys lists the distinct (user, currency) pairs holding investments.
func (r *InvestmentRepository) ListInvestorKeys(ctx context.Context) ([]domainRepos.PortfolioKey, error) {
	var rows []struct {
		UserID   uuid.UUID
		Currency string
	}
	if err := GetDB(ctx, r.db).Model(&models.Investment{}).Distinct("user_id", "currency").Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]domainRepos.PortfolioKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, domainRepos.PortfolioKey{UserID: row.UserID, Currency: row.Currency})
	}
	return out, nil
}

func investmentToModel(i *entities.Investment) *models.Investment {
	return &models.Investment{
		ID:                 i.ID,
		UserID:             i.UserID,
		WalletID:           i.WalletID,
		ProductID:          i.ProductID,
		Currency:           i.Currency,
		Principal:          i.Principal,
		InterestRate:       i.InterestRate,
		DurationDays:       i.DurationDays,
		StartDate:          i.StartDate,
		MaturityDate:       i.MaturityDate,
		ActualMaturityDate: i.ActualMaturityDate.Ptr(),
		Status:             string(i.Status),
		ExpectedReturns:    i.ExpectedReturns,
		ActualReturns:      i.ActualReturns,
		AutoRenew:          i.AutoRenew,
		RenewedFromID:      i.RenewedFromID,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}

func investmentToEntity(m *models.Investment) *entities.Investment {
	return &entities.Investment{
		ID:                 m.ID,
		UserID:             m.UserID,
		WalletID:           m.WalletID,
		ProductID:          m.ProductID,
		Currency:           m.Currency,
		Principal:          m.Principal,
		InterestRate:       m.InterestRate,
		DurationDays:       m.DurationDays,
		StartDate:          m.StartDate,
		MaturityDate:       m.MaturityDate,
		ActualMaturityDate: null.TimeFromPtr(m.ActualMaturityDate),
		Status:             entities.InvestmentStatus(m.Status),
		ExpectedReturns:    m.ExpectedReturns,
		ActualReturns:      m.ActualReturns,
		AutoRenew:          m.AutoRenew,
		RenewedFromID:      m.RenewedFromID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func returnToModel(r *entities.InvestmentReturn) *models.InvestmentReturn {
	return &models.InvestmentReturn{
		ID:            r.ID,
		InvestmentID:  r.InvestmentID,
		Amount:        r.Amount,
		PayoutDate:    r.PayoutDate,
		IsPaid:        r.IsPaid,
		PaidAt:        r.PaidAt.Ptr(),
		TransactionID: r.TransactionID,
		CreatedAt:     r.CreatedAt,
	}
}

func returnToEntity(m *models.InvestmentReturn) *entities.InvestmentReturn {
	return &entities.InvestmentReturn{
		ID:            m.ID,
		InvestmentID:  m.InvestmentID,
		Amount:        m.Amount,
		PayoutDate:    m.PayoutDate,
		IsPaid:        m.IsPaid,
		PaidAt:        null.TimeFromPtr(m.PaidAt),
		TransactionID: m.TransactionID,
		CreatedAt:     m.CreatedAt,
	}
}
