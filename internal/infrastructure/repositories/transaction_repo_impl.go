package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

// TransactionRepository implements transaction data operations
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create creates a new transaction
func (r *TransactionRepository) Create(ctx context.Context, txn *entities.Transaction) error {
	m := transactionToModel(txn)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	txn.CreatedAt, txn.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetByID gets a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.first(lockedDB(ctx, r.db).Where("id = ?", id))
}

// GetByReference gets a transaction by its internal reference
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*entities.Transaction, error) {
	return r.first(lockedDB(ctx, r.db).Where("reference = ?", reference))
}

// GetByExternalReference gets a transaction by idempotency/external reference
func (r *TransactionRepository) GetByExternalReference(ctx context.Context, externalRef string) (*entities.Transaction, error) {
	return r.first(lockedDB(ctx, r.db).Where("external_reference = ?", externalRef))
}

// GetByProviderReference gets a transaction by the provider's reference
func (r *TransactionRepository) GetByProviderReference(ctx context.Context, providerRef string) (*entities.Transaction, error) {
	return r.first(lockedDB(ctx, r.db).Where("provider_reference = ?", providerRef).Order("created_at DESC"))
}

func (r *TransactionRepository) first(q *gorm.DB) (*entities.Transaction, error) {
	var m models.Transaction
	if err := q.First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return transactionToEntity(&m), nil
}

// Update writes the full transaction row
func (r *TransactionRepository) Update(ctx context.Context, txn *entities.Transaction) error {
	txn.UpdatedAt = time.Now()
	m := transactionToModel(txn)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

// List lists transactions newest first
func (r *TransactionRepository) List(ctx context.Context, filter entities.TransactionFilter, limit, offset int) ([]*entities.Transaction, int64, error) {
	q := GetDB(ctx, r.db).Model(&models.Transaction{})
	if filter.UserID != nil {
		q = q.Where("from_user_id = ? OR to_user_id = ?", *filter.UserID, *filter.UserID)
	}
	if filter.WalletID != nil {
		q = q.Where("from_wallet_id = ? OR to_wallet_id = ?", *filter.WalletID, *filter.WalletID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	var rows []models.Transaction
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, mapError(err)
	}
	out := make([]*entities.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, transactionToEntity(&rows[i]))
	}
	return out, total, nil
}

// SumOutbound totals non-failed debits from a wallet since the given time.
func (r *TransactionRepository) SumOutbound(ctx context.Context, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var rows []models.Transaction
	err := GetDB(ctx, r.db).
		Select("amount").
		Where("from_wallet_id = ? AND created_at >= ? AND status IN ?", walletID, since, []string{
			string(entities.TransactionStatusPending),
			string(entities.TransactionStatusProcessing),
			string(entities.TransactionStatusCompleted),
		}).
		Where("type IN ?", []string{
			string(entities.TransactionTypeTransfer),
			string(entities.TransactionTypeWithdrawal),
			string(entities.TransactionTypePayment),
		}).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}

func (r *TransactionRepository) CreateFee(ctx context.Context, fee *entities.TransactionFee) error {
	if fee.ID == uuid.Nil {
		fee.ID = uuid.New()
	}
	m := &models.TransactionFee{
		ID:            fee.ID,
		TransactionID: fee.TransactionID,
		FeeType:       fee.FeeType,
		Amount:        fee.Amount,
		Percentage:    fee.Percentage,
		Description:   fee.Description,
		CreatedAt:     fee.CreatedAt,
	}
	return mapError(GetDB(ctx, r.db).Create(m).Error)
}

func (r *TransactionRepository) ListFees(ctx context.Context, transactionID uuid.UUID) ([]entities.TransactionFee, error) {
	var rows []models.TransactionFee
	if err := GetDB(ctx, r.db).Where("transaction_id = ?", transactionID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]entities.TransactionFee, 0, len(rows))
	for _, m := range rows {
		out = append(out, entities.TransactionFee{
			ID:            m.ID,
			TransactionID: m.TransactionID,
			FeeType:       m.FeeType,
			Amount:        m.Amount,
			Percentage:    m.Percentage,
			Description:   m.Description,
			CreatedAt:     m.CreatedAt,
		})
	}
	return out, nil
}

// CreateLog appends a status change record
func (r *TransactionRepository) CreateLog(ctx context.Context, log *entities.TransactionLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.At.IsZero() {
		log.At = time.Now()
	}
	m := &models.TransactionLog{
		ID:             log.ID,
		TransactionID:  log.TransactionID,
		PreviousStatus: string(log.PreviousStatus),
		NewStatus:      string(log.NewStatus),
		ChangedBy:      log.ChangedBy,
		Reason:         log.Reason,
		At:             log.At,
	}
	return mapError(GetDB(ctx, r.db).Create(m).Error)
}

// ListLogs returns status changes ordered by time
func (r *TransactionRepository) ListLogs(ctx context.Context, transactionID uuid.UUID) ([]entities.TransactionLog, error) {
	var rows []models.TransactionLog
	if err := GetDB(ctx, r.db).Where("transaction_id = ?", transactionID).Order("at ASC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]entities.TransactionLog, 0, len(rows))
	for _, m := range rows {
		out = append(out, entities.TransactionLog{
			ID:             m.ID,
			TransactionID:  m.TransactionID,
			PreviousStatus: entities.TransactionStatus(m.PreviousStatus),
			NewStatus:      entities.TransactionStatus(m.NewStatus),
			ChangedBy:      m.ChangedBy,
			Reason:         m.Reason,
			At:             m.At,
		})
	}
	return out, nil
}

func transactionToModel(t *entities.Transaction) *models.Transaction {
	return &models.Transaction{
		ID:                t.ID,
		Reference:         t.Reference,
		Type:              string(t.Type),
		Status:            string(t.Status),
		Direction:         string(t.Direction),
		Amount:            t.Amount,
		FeeAmount:         t.FeeAmount,
		NetAmount:         t.NetAmount,
		Currency:          t.Currency,
		FromUserID:        t.FromUserID,
		FromWalletID:      t.FromWalletID,
		ToUserID:          t.ToUserID,
		ToWalletID:        t.ToWalletID,
		FromBalanceBefore: t.FromBalanceBefore,
		FromBalanceAfter:  t.FromBalanceAfter,
		ToBalanceBefore:   t.ToBalanceBefore,
		ToBalanceAfter:    t.ToBalanceAfter,
		ExchangeRate:      t.ExchangeRate,
		ExternalReference: t.ExternalReference.Ptr(),
		ProviderReference: t.ProviderReference.Ptr(),
		ProviderName:      t.ProviderName.Ptr(),
		RelatedID:         t.RelatedID,
		Description:       t.Description,
		Metadata:          encodeJSON(t.Metadata),
		FailureReason:     t.FailureReason.Ptr(),
		InitiatedAt:       t.InitiatedAt,
		ProcessedAt:       t.ProcessedAt.Ptr(),
		CompletedAt:       t.CompletedAt.Ptr(),
		FailedAt:          t.FailedAt.Ptr(),
		ReversedAt:        t.ReversedAt.Ptr(),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func transactionToEntity(m *models.Transaction) *entities.Transaction {
	return &entities.Transaction{
		ID:                m.ID,
		Reference:         m.Reference,
		Type:              entities.TransactionType(m.Type),
		Status:            entities.TransactionStatus(m.Status),
		Direction:         entities.TransactionDirection(m.Direction),
		Amount:            m.Amount,
		FeeAmount:         m.FeeAmount,
		NetAmount:         m.NetAmount,
		Currency:          m.Currency,
		FromUserID:        m.FromUserID,
		FromWalletID:      m.FromWalletID,
		ToUserID:          m.ToUserID,
		ToWalletID:        m.ToWalletID,
		FromBalanceBefore: m.FromBalanceBefore,
		FromBalanceAfter:  m.FromBalanceAfter,
		ToBalanceBefore:   m.ToBalanceBefore,
		ToBalanceAfter:    m.ToBalanceAfter,
		ExchangeRate:      m.ExchangeRate,
		ExternalReference: null.StringFromPtr(m.ExternalReference),
		ProviderReference: null.StringFromPtr(m.ProviderReference),
		ProviderName:      null.StringFromPtr(m.ProviderName),
		RelatedID:         m.RelatedID,
		Description:       m.Description,
		Metadata:          decodeMap(m.Metadata),
		FailureReason:     null.StringFromPtr(m.FailureReason),
		InitiatedAt:       m.InitiatedAt,
		ProcessedAt:       null.TimeFromPtr(m.ProcessedAt),
		CompletedAt:       null.TimeFromPtr(m.CompletedAt),
		FailedAt:          null.TimeFromPtr(m.FailedAt),
		ReversedAt:        null.TimeFromPtr(m.ReversedAt),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// DisputeRepository implements dispute data operations
type DisputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d *entities.Dispute) error {
	m := disputeToModel(d)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	d.CreatedAt, d.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Dispute, error) {
	var m models.Dispute
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return disputeToEntity(&m), nil
}

// GetOpenByTransaction returns the opened or in-review dispute of a transaction
func (r *DisputeRepository) GetOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*entities.Dispute, error) {
	var m models.Dispute
	err := lockedDB(ctx, r.db).
		Where("transaction_id = ? AND status IN ?", transactionID, []string{
			string(entities.DisputeStatusOpened), string(entities.DisputeStatusInReview),
		}).
		First(&m).Error
	if err != nil {
		return nil, mapError(err)
	}
	return disputeToEntity(&m), nil
}

func (r *DisputeRepository) Update(ctx context.Context, d *entities.Dispute) error {
	d.UpdatedAt = time.Now()
	m := disputeToModel(d)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Dispute, int64, error) {
	q := GetDB(ctx, r.db).Model(&models.Dispute{}).Where("initiated_by = ?", userID)
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var rows []models.Dispute
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, mapError(err)
	}
	out := make([]*entities.Dispute, 0, len(rows))
	for i := range rows {
		out = append(out, disputeToEntity(&rows[i]))
	}
	return out, total, nil
}

func disputeToModel(d *entities.Dispute) *models.Dispute {
	return &models.Dispute{
		ID:              d.ID,
		TransactionID:   d.TransactionID,
		Type:            string(d.Type),
		Status:          string(d.Status),
		Reason:          d.Reason,
		DisputedAmount:  d.DisputedAmount,
		InitiatedBy:     d.InitiatedBy,
		Evidence:        encodeJSON(d.Evidence),
		ResolvedAt:      d.ResolvedAt.Ptr(),
		ResolvedBy:      d.ResolvedBy,
		ResolutionNotes: d.ResolutionNotes.Ptr(),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func disputeToEntity(m *models.Dispute) *entities.Dispute {
	d := &entities.Dispute{
		ID:              m.ID,
		TransactionID:   m.TransactionID,
		Type:            entities.DisputeType(m.Type),
		Status:          entities.DisputeStatus(m.Status),
		Reason:          m.Reason,
		DisputedAmount:  m.DisputedAmount,
		InitiatedBy:     m.InitiatedBy,
		ResolvedAt:      null.TimeFromPtr(m.ResolvedAt),
		ResolvedBy:      m.ResolvedBy,
		ResolutionNotes: null.StringFromPtr(m.ResolutionNotes),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Evidence != "" {
		_ = decodeInto(m.Evidence, &d.Evidence)
	}
	return d
}

// AuditRepository is insert-only
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, e *entities.AuditLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.RetentionDays == 0 {
		e.RetentionDays = entities.DefaultAuditRetentionDays
	}
	m := &models.AuditLog{
		ID:             e.ID,
		EventType:      e.EventType,
		Category:       string(e.Category),
		Severity:       string(e.Severity),
		UserID:         e.UserID,
		UserEmail:      e.UserEmail.Ptr(),
		IPAddress:      e.IPAddress.Ptr(),
		UserAgent:      e.UserAgent.Ptr(),
		Action:         e.Action,
		ResourceType:   e.ResourceType,
		ResourceID:     e.ResourceID,
		RequestSummary: encodeJSON(e.RequestSummary),
		OldValues:      encodeJSON(e.OldValues),
		NewValues:      encodeJSON(e.NewValues),
		RetentionDays:  e.RetentionDays,
		CreatedAt:      e.CreatedAt,
	}
	return mapError(GetDB(ctx, r.db).Create(m).Error)
}

func (r *AuditRepository) List(ctx context.Context, filter entities.AuditFilter, limit, offset int) ([]*entities.AuditLog, int64, error) {
	q := GetDB(ctx, r.db).Model(&models.AuditLog{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if filter.ResourceType != "" {
		q = q.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var rows []models.AuditLog
	if err := q.Order("created_at ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, mapError(err)
	}
	out := make([]*entities.AuditLog, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entities.AuditLog{
			ID:             m.ID,
			EventType:      m.EventType,
			Category:       entities.AuditCategory(m.Category),
			Severity:       entities.AuditSeverity(m.Severity),
			UserID:         m.UserID,
			UserEmail:      null.StringFromPtr(m.UserEmail),
			IPAddress:      null.StringFromPtr(m.IPAddress),
			UserAgent:      null.StringFromPtr(m.UserAgent),
			Action:         m.Action,
			ResourceType:   m.ResourceType,
			ResourceID:     m.ResourceID,
			RequestSummary: decodeMap(m.RequestSummary),
			OldValues:      decodeMap(m.OldValues),
			NewValues:      decodeMap(m.NewValues),
			RetentionDays:  m.RetentionDays,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, total, nil
}
