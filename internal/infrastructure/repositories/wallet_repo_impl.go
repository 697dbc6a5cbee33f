package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

// CurrencyRepository implements currency data operations
type CurrencyRepository struct {
	db *gorm.DB
}

func NewCurrencyRepository(db *gorm.DB) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

func (r *CurrencyRepository) GetByCode(ctx context.Context, code string) (*entities.Currency, error) {
	var m models.Currency
	if err := GetDB(ctx, r.db).Where("code = ?", strings.ToUpper(code)).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return currencyToEntity(&m), nil
}

func (r *CurrencyRepository) List(ctx context.Context, activeOnly bool) ([]*entities.Currency, error) {
	var rows []models.Currency
	q := GetDB(ctx, r.db).Order("code ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.Currency, 0, len(rows))
	for i := range rows {
		out = append(out, currencyToEntity(&rows[i]))
	}
	return out, nil
}

// Upsert inserts the currency or refreshes its attributes.
func (r *CurrencyRepository) Upsert(ctx context.Context, c *entities.Currency) error {
	m := &models.Currency{
		Code:            strings.ToUpper(c.Code),
		Name:            c.Name,
		Symbol:          c.Symbol,
		DecimalPlaces:   c.DecimalPlaces,
		IsCrypto:        c.IsCrypto,
		ExchangeRateUSD: c.ExchangeRateUSD,
		IsActive:        c.IsActive,
	}
	db := GetDB(ctx, r.db)
	res := db.Model(&models.Currency{}).Where("code = ?", m.Code).Updates(map[string]interface{}{
		"name":              m.Name,
		"symbol":            m.Symbol,
		"decimal_places":    m.DecimalPlaces,
		"is_crypto":         m.IsCrypto,
		"exchange_rate_usd": m.ExchangeRateUSD,
		"is_active":         m.IsActive,
		"updated_at":        time.Now(),
	})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return mapError(db.Create(m).Error)
}

func currencyToEntity(m *models.Currency) *entities.Currency {
	return &entities.Currency{
		Code:            m.Code,
		Name:            m.Name,
		Symbol:          m.Symbol,
		DecimalPlaces:   m.DecimalPlaces,
		IsCrypto:        m.IsCrypto,
		ExchangeRateUSD: m.ExchangeRateUSD,
		IsActive:        m.IsActive,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// WalletRepository implements wallet data operations
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create creates a new wallet
func (r *WalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	m := walletToModel(wallet)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	wallet.CreatedAt, wallet.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetByID gets a wallet by ID, locking the row when requested
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	var m models.Wallet
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return walletToEntity(&m), nil
}

// GetByAccountNumber gets a wallet by its 10-digit account number
func (r *WalletRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*entities.Wallet, error) {
	var m models.Wallet
	if err := lockedDB(ctx, r.db).Where("account_number = ?", accountNumber).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return walletToEntity(&m), nil
}

func (r *WalletRepository) GetByUserCurrencyType(ctx context.Context, userID uuid.UUID, currency string, walletType entities.WalletType) (*entities.Wallet, error) {
	var m models.Wallet
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND currency = ? AND wallet_type = ?", userID, currency, string(walletType)).
		First(&m).Error
	if err != nil {
		return nil, mapError(err)
	}
	return walletToEntity(&m), nil
}

// GetDefault returns the user's default wallet for a currency
func (r *WalletRepository) GetDefault(ctx context.Context, userID uuid.UUID, currency string) (*entities.Wallet, error) {
	var m models.Wallet
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND currency = ? AND is_default = ?", userID, currency, true).
		First(&m).Error
	if err != nil {
		return nil, mapError(err)
	}
	return walletToEntity(&m), nil
}

// ListByUser lists wallets owned by a user
func (r *WalletRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error) {
	var rows []models.Wallet
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.Wallet, 0, len(rows))
	for i := range rows {
		out = append(out, walletToEntity(&rows[i]))
	}
	return out, nil
}

func (r *WalletRepository) CountByUserCurrency(ctx context.Context, userID uuid.UUID, currency string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&models.Wallet{}).
		Where("user_id = ? AND currency = ?", userID, currency).
		Count(&count).Error
	return count, mapError(err)
}

func (r *WalletRepository) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&models.Wallet{}).Where("account_number = ?", accountNumber).Count(&count).Error
	return count > 0, mapError(err)
}

// Update writes the full wallet row
func (r *WalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	wallet.UpdatedAt = time.Now()
	m := walletToModel(wallet)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func walletToModel(w *entities.Wallet) *models.Wallet {
	return &models.Wallet{
		ID:                w.ID,
		UserID:            w.UserID,
		Currency:          w.Currency,
		WalletType:        string(w.Type),
		Balance:           w.Balance,
		AvailableBalance:  w.AvailableBalance,
		Status:            string(w.Status),
		PINHash:           w.PINHash,
		RequiresPIN:       w.RequiresPIN,
		RequiresBiometric: w.RequiresBiometric,
		DailyLimit:        w.DailyLimit,
		AccountNumber:     w.AccountNumber,
		AccountName:       w.AccountName,
		IsDefault:         w.IsDefault,
		LastTransactionAt: w.LastTransactionAt.Ptr(),
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

func walletToEntity(m *models.Wallet) *entities.Wallet {
	return &entities.Wallet{
		ID:                m.ID,
		UserID:            m.UserID,
		Currency:          m.Currency,
		Type:              entities.WalletType(m.WalletType),
		Balance:           m.Balance,
		AvailableBalance:  m.AvailableBalance,
		Status:            entities.WalletStatus(m.Status),
		PINHash:           m.PINHash,
		RequiresPIN:       m.RequiresPIN,
		RequiresBiometric: m.RequiresBiometric,
		DailyLimit:        m.DailyLimit,
		AccountNumber:     m.AccountNumber,
		AccountName:       m.AccountName,
		IsDefault:         m.IsDefault,
		LastTransactionAt: null.TimeFromPtr(m.LastTransactionAt),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// HoldRepository implements hold data operations
type HoldRepository struct {
	db *gorm.DB
}

func NewHoldRepository(db *gorm.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

func (r *HoldRepository) Create(ctx context.Context, h *entities.Hold) error {
	m := holdToModel(h)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	h.CreatedAt, h.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *HoldRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Hold, error) {
	var m models.Hold
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return holdToEntity(&m), nil
}

func (r *HoldRepository) Update(ctx context.Context, h *entities.Hold) error {
	h.UpdatedAt = time.Now()
	m := holdToModel(h)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *HoldRepository) ListActiveByWallet(ctx context.Context, walletID uuid.UUID) ([]*entities.Hold, error) {
	return r.list(GetDB(ctx, r.db).Where("wallet_id = ? AND status = ?", walletID, string(entities.HoldStatusActive)))
}

func (r *HoldRepository) ListActiveByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*entities.Hold, error) {
	return r.list(GetDB(ctx, r.db).Where("transaction_id = ? AND status = ?", transactionID, string(entities.HoldStatusActive)))
}

// SumActive totals the active holds of a wallet.
func (r *HoldRepository) SumActive(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	holds, err := r.ListActiveByWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, h := range holds {
		total = total.Add(h.Amount)
	}
	return total, nil
}

// ListExpired returns active holds whose expiry has passed.
func (r *HoldRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entities.Hold, error) {
	return r.list(GetDB(ctx, r.db).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(entities.HoldStatusActive), now).
		Order("expires_at ASC").
		Limit(limit))
}

func (r *HoldRepository) list(q *gorm.DB) ([]*entities.Hold, error) {
	var rows []models.Hold
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.Hold, 0, len(rows))
	for i := range rows {
		out = append(out, holdToEntity(&rows[i]))
	}
	return out, nil
}

func holdToModel(h *entities.Hold) *models.Hold {
	return &models.Hold{
		ID:            h.ID,
		WalletID:      h.WalletID,
		Amount:        h.Amount,
		Status:        string(h.Status),
		Reason:        h.Reason,
		TransactionID: h.TransactionID,
		ExpiresAt:     h.ExpiresAt.Ptr(),
		ReleasedAt:    h.ReleasedAt.Ptr(),
		CreatedAt:     h.CreatedAt,
		UpdatedAt:     h.UpdatedAt,
	}
}

func holdToEntity(m *models.Hold) *entities.Hold {
	return &entities.Hold{
		ID:            m.ID,
		WalletID:      m.WalletID,
		Amount:        m.Amount,
		Status:        entities.HoldStatus(m.Status),
		Reason:        m.Reason,
		TransactionID: m.TransactionID,
		ExpiresAt:     null.TimeFromPtr(m.ExpiresAt),
		ReleasedAt:    null.TimeFromPtr(m.ReleasedAt),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
