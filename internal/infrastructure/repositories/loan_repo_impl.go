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

// LoanRepository implements loan, schedule and auto-repayment data operations
type LoanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, loan *entities.Loan) error {
	m := loanToModel(loan)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	loan.CreatedAt, loan.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Loan, error) {
	var m models.Loan
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return loanToEntity(&m), nil
}

func (r *LoanRepository) Update(ctx context.Context, loan *entities.Loan) error {
	loan.UpdatedAt = time.Now()
	m := loanToModel(loan)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Loan, error) {
	var rows []models.Loan
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.Loan, 0, len(rows))
	for i := range rows {
		out = append(out, loanToEntity(&rows[i]))
	}
	return out, nil
}

func (r *LoanRepository) CreateScheduleEntry(ctx context.Context, e *entities.LoanScheduleEntry) error {
	return mapError(GetDB(ctx, r.db).Create(scheduleToModel(e)).Error)
}

func (r *LoanRepository) GetScheduleEntry(ctx context.Context, id uuid.UUID) (*entities.LoanScheduleEntry, error) {
	var m models.LoanScheduleEntry
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return scheduleToEntity(&m), nil
}

func (r *LoanRepository) UpdateScheduleEntry(ctx context.Context, e *entities.LoanScheduleEntry) error {
	e.UpdatedAt = time.Now()
	m := scheduleToModel(e)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

func (r *LoanRepository) ListSchedule(ctx context.Context, loanID uuid.UUID) ([]*entities.LoanScheduleEntry, error) {
	return r.listSchedule(lockedDB(ctx, r.db).Where("loan_id = ?", loanID).Order("sequence ASC"))
}

// ListOverdueCandidates returns instalments still due whose due date has passed.
func (r *LoanRepository) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.LoanScheduleEntry, error) {
	return r.listSchedule(GetDB(ctx, r.db).
		Where("status = ? AND due_date < ?", string(entities.ScheduleStatusDue), now).
		Order("due_date ASC").
		Limit(limit))
}

// ListUnpaidDueBefore returns the loan's unpaid instalments due before the cutoff, oldest first.
func (r *LoanRepository) ListUnpaidDueBefore(ctx context.Context, loanID uuid.UUID, before time.Time) ([]*entities.LoanScheduleEntry, error) {
	return r.listSchedule(lockedDB(ctx, r.db).
		Where("loan_id = ? AND status <> ? AND due_date <= ?", loanID, string(entities.ScheduleStatusPaid), before).
		Order("sequence ASC"))
}

func (r *LoanRepository) listSchedule(q *gorm.DB) ([]*entities.LoanScheduleEntry, error) {
	var rows []models.LoanScheduleEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.LoanScheduleEntry, 0, len(rows))
	for i := range rows {
		out = append(out, scheduleToEntity(&rows[i]))
	}
	return out, nil
}

func (r *LoanRepository) CreateAutoRepayment(ctx context.Context, a *entities.AutoRepayment) error {
	m := autoRepaymentToModel(a)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	a.CreatedAt, a.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *LoanRepository) GetAutoRepayment(ctx context.Context, id uuid.UUID) (*entities.AutoRepayment, error) {
	var m models.AutoRepayment
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return autoRepaymentToEntity(&m), nil
}

func (r *LoanRepository) GetAutoRepaymentByLoan(ctx context.Context, loanID uuid.UUID) (*entities.AutoRepayment, error) {
	var m models.AutoRepayment
	if err := lockedDB(ctx, r.db).Where("loan_id = ?", loanID).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return autoRepaymentToEntity(&m), nil
}

func (r *LoanRepository) UpdateAutoRepayment(ctx context.Context, a *entities.AutoRepayment) error {
	a.UpdatedAt = time.Now()
	m := autoRepaymentToModel(a)
	return affected(GetDB(ctx, r.db).Model(m).Select("*").Omit("created_at").Updates(m))
}

// ListActiveAutoRepayments pages active mandates by id, starting after the
// given id. Keyset paging keeps the walk stable while statuses change.
func (r *LoanRepository) ListActiveAutoRepayments(ctx context.Context, after uuid.UUID, limit int) ([]*entities.AutoRepayment, error) {
	var rows []models.AutoRepayment
	err := GetDB(ctx, r.db).
		Where("status = ? AND id > ?", string(entities.AutoRepaymentActive), after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]*entities.AutoRepayment, 0, len(rows))
	for i := range rows {
		out = append(out, autoRepaymentToEntity(&rows[i]))
	}
	return out, nil
}

func loanToModel(l *entities.Loan) *models.Loan {
	return &models.Loan{
		ID:           l.ID,
		UserID:       l.UserID,
		WalletID:     l.WalletID,
		Currency:     l.Currency,
		Principal:    l.Principal,
		InterestRate: l.InterestRate,
		TermMonths:   l.TermMonths,
		Status:       string(l.Status),
		DisbursedAt:  l.DisbursedAt.Ptr(),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func loanToEntity(m *models.Loan) *entities.Loan {
	return &entities.Loan{
		ID:           m.ID,
		UserID:       m.UserID,
		WalletID:     m.WalletID,
		Currency:     m.Currency,
		Principal:    m.Principal,
		InterestRate: m.InterestRate,
		TermMonths:   m.TermMonths,
		Status:       entities.LoanStatus(m.Status),
		DisbursedAt:  null.TimeFromPtr(m.DisbursedAt),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func scheduleToModel(e *entities.LoanScheduleEntry) *models.LoanScheduleEntry {
	return &models.LoanScheduleEntry{
		ID:            e.ID,
		LoanID:        e.LoanID,
		Sequence:      e.Sequence,
		DueDate:       e.DueDate,
		PrincipalDue:  e.PrincipalDue,
		InterestDue:   e.InterestDue,
		AmountPaid:    e.AmountPaid,
		Status:        string(e.Status),
		PaidAt:        e.PaidAt.Ptr(),
		TransactionID: e.TransactionID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func scheduleToEntity(m *models.LoanScheduleEntry) *entities.LoanScheduleEntry {
	return &entities.LoanScheduleEntry{
		ID:            m.ID,
		LoanID:        m.LoanID,
		Sequence:      m.Sequence,
		DueDate:       m.DueDate,
		PrincipalDue:  m.PrincipalDue,
		InterestDue:   m.InterestDue,
		AmountPaid:    m.AmountPaid,
		Status:        entities.ScheduleStatus(m.Status),
		PaidAt:        null.TimeFromPtr(m.PaidAt),
		TransactionID: m.TransactionID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func autoRepaymentToModel(a *entities.AutoRepayment) *models.AutoRepayment {
	return &models.AutoRepayment{
		ID:                 a.ID,
		LoanID:             a.LoanID,
		WalletID:           a.WalletID,
		Status:             string(a.Status),
		DaysBeforeDue:      a.DaysBeforeDue,
		MaxRetryAttempts:   a.MaxRetryAttempts,
		RetryIntervalHours: a.RetryIntervalHours,
		RetryCount:         a.RetryCount,
		NextRetryAt:        a.NextRetryAt.Ptr(),
		LastAttemptAt:      a.LastAttemptAt.Ptr(),
		LastError:          a.LastError.Ptr(),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func autoRepaymentToEntity(m *models.AutoRepayment) *entities.AutoRepayment {
	return &entities.AutoRepayment{
		ID:                 m.ID,
		LoanID:             m.LoanID,
		WalletID:           m.WalletID,
		Status:             entities.AutoRepaymentStatus(m.Status),
		DaysBeforeDue:      m.DaysBeforeDue,
		MaxRetryAttempts:   m.MaxRetryAttempts,
		RetryIntervalHours: m.RetryIntervalHours,
		RetryCount:         m.RetryCount,
		NextRetryAt:        null.TimeFromPtr(m.NextRetryAt),
		LastAttemptAt:      null.TimeFromPtr(m.LastAttemptAt),
		LastError:          null.StringFromPtr(m.LastError),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
