package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"walletcore.backend/internal/domain/entities"
)

// InvestmentRepository defines investment data operations
type InvestmentRepository interface {
	CreateProduct(ctx context.Context, p *entities.InvestmentProduct) error
	GetProduct(ctx context.Context, id uuid.UUID) (*entities.InvestmentProduct, error)
	ListProducts(ctx context.Context) ([]*entities.InvestmentProduct, error)

	Create(ctx context.Context, inv *entities.Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error)
	Update(ctx context.Context, inv *entities.Investment) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error)
	ListDueForMaturity(ctx context.Context, now time.Time, limit int) ([]*entities.Investment, error)

	CreateReturn(ctx context.Context, r *entities.InvestmentReturn) error
	GetReturn(ctx context.Context, id uuid.UUID) (*entities.InvestmentReturn, error)
	UpdateReturn(ctx context.Context, r *entities.InvestmentReturn) error
	ListReturns(ctx context.Context, investmentID uuid.UUID) ([]*entities.InvestmentReturn, error)
	ListDueReturns(ctx context.Context, now time.Time, limit int) ([]*entities.InvestmentReturn, error)

	UpsertPortfolio(ctx context.Context, p *entities.Portfolio) error
	GetPortfolio(ctx context.Context, userID uuid.UUID, currency string) (*entities.Portfolio, error)
	ListInvestorKeys(ctx context.Context) ([]PortfolioKey, error)
}

// PortfolioKey identifies one portfolio row.
type PortfolioKey struct {
	UserID   uuid.UUID
	Currency string
}

// LoanRepository defines loan data operations
type LoanRepository interface {
	Create(ctx context.Context, loan *entities.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Loan, error)
	Update(ctx context.Context, loan *entities.Loan) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Loan, error)

	CreateScheduleEntry(ctx context.Context, e *entities.LoanScheduleEntry) error
	GetScheduleEntry(ctx context.Context, id uuid.UUID) (*entities.LoanScheduleEntry, error)
	UpdateScheduleEntry(ctx context.Context, e *entities.LoanScheduleEntry) error
	ListSchedule(ctx context.Context, loanID uuid.UUID) ([]*entities.LoanScheduleEntry, error)
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.LoanScheduleEntry, error)
	ListUnpaidDueBefore(ctx context.Context, loanID uuid.UUID, before time.Time) ([]*entities.LoanScheduleEntry, error)

	CreateAutoRepayment(ctx context.Context, a *entities.AutoRepayment) error
	GetAutoRepayment(ctx context.Context, id uuid.UUID) (*entities.AutoRepayment, error)
	GetAutoRepaymentByLoan(ctx context.Context, loanID uuid.UUID) (*entities.AutoRepayment, error)
	UpdateAutoRepayment(ctx context.Context, a *entities.AutoRepayment) error
	ListActiveAutoRepayments(ctx context.Context, after uuid.UUID, limit int) ([]*entities.AutoRepayment, error)
}
