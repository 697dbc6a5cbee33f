package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/money"
	"walletcore.backend/pkg/utils"
)

// Auto-repayment defaults
const (
	DefaultDaysBeforeDue      = 3
	DefaultMaxRetryAttempts   = 3
	DefaultRetryIntervalHours = 24
	maxLoanTermMonths         = 60
)

// LoanUsecase disburses loans and collects their instalments.
type LoanUsecase struct {
	uow          repositories.UnitOfWork
	repo         repositories.LoanRepository
	ledger       *LedgerUsecase
	transactions *TransactionUsecase
	notifier     Notifier
	audit        *AuditUsecase
}

// NewLoanUsecase creates a new loan usecase
func NewLoanUsecase(
	uow repositories.UnitOfWork,
	repo repositories.LoanRepository,
	ledger *LedgerUsecase,
	transactions *TransactionUsecase,
	notifier Notifier,
	audit *AuditUsecase,
) *LoanUsecase {
	return &LoanUsecase{
		uow:          uow,
		repo:         repo,
		ledger:       ledger,
		transactions: transactions,
		notifier:     notifier,
		audit:        audit,
	}
}

// BuildSchedule splits principal into equal monthly instalments with flat
// monthly interest of principal x rate% / 12. The last instalment absorbs
// rounding.
func BuildSchedule(loan *entities.Loan, start time.Time, places int32) []*entities.LoanScheduleEntry {
	months := decimal.NewFromInt(int64(loan.TermMonths))
	share := money.Round(loan.Principal.Div(months), places)
	interest := money.Round(loan.Principal.Mul(loan.InterestRate).Div(decimal.NewFromInt(1200)), places)
	out := make([]*entities.LoanScheduleEntry, 0, loan.TermMonths)
	allocated := decimal.Zero
	for i := 1; i <= loan.TermMonths; i++ {
		principal := share
		if i == loan.TermMonths {
			principal = loan.Principal.Sub(allocated)
		}
		allocated = allocated.Add(principal)
		out = append(out, &entities.LoanScheduleEntry{
			ID:           utils.GenerateUUIDv7(),
			LoanID:       loan.ID,
			Sequence:     i,
			DueDate:      start.AddDate(0, i, 0),
			PrincipalDue: principal,
			InterestDue:  interest,
			AmountPaid:   decimal.Zero,
			Status:       entities.ScheduleStatusDue,
			CreatedAt:    start,
			UpdatedAt:    start,
		})
	}
	return out
}

// Create disburses a loan into the borrower's wallet. Staff only.
func (u *LoanUsecase) Create(ctx context.Context, staffID uuid.UUID, input *entities.CreateLoanInput) (*entities.Loan, []*entities.LoanScheduleEntry, error) {
	ctx = detach(ctx)
	wallet, err := u.ledger.GetWallet(ctx, input.UserID, input.WalletID)
	if err != nil {
		return nil, nil, err
	}
	if !wallet.IsActive() {
		return nil, nil, domainerrors.InvalidState("wallet is " + string(wallet.Status))
	}
	cur, err := u.ledger.Currency(ctx, wallet.Currency)
	if err != nil {
		return nil, nil, err
	}
	principal, err := parseAmount(input.Principal, cur)
	if err != nil {
		return nil, nil, err
	}
	rate, err := money.Parse(input.InterestRate)
	if err != nil || rate.IsNegative() {
		return nil, nil, domainerrors.Validation("invalid interest rate", map[string]string{"interestRate": "must be a non-negative percentage"})
	}
	if input.TermMonths <= 0 || input.TermMonths > maxLoanTermMonths {
		return nil, nil, domainerrors.Validation("invalid term", map[string]string{"termMonths": fmt.Sprintf("between 1 and %d", maxLoanTermMonths)})
	}

	now := nowFunc()
	loan := &entities.Loan{
		ID:           utils.GenerateUUIDv7(),
		UserID:       input.UserID,
		WalletID:     wallet.ID,
		Currency:     wallet.Currency,
		Principal:    principal,
		InterestRate: rate,
		TermMonths:   input.TermMonths,
		Status:       entities.LoanStatusActive,
		DisbursedAt:  null.TimeFrom(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	schedule := BuildSchedule(loan, now, cur.DecimalPlaces)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.repo.Create(txCtx, loan); err != nil {
			return err
		}
		for _, e := range schedule {
			if err := u.repo.CreateScheduleEntry(txCtx, e); err != nil {
				return err
			}
		}
		if _, err := u.transactions.Post(txCtx, PostingInput{
			WalletID:          wallet.ID,
			Direction:         entities.DirectionCredit,
			Amount:            principal,
			Type:              entities.TransactionTypeLoanDisbursement,
			Description:       "Loan disbursement",
			ExternalReference: "loan:" + loan.ID.String(),
			RelatedID:         &loan.ID,
			ActorID:           &staffID,
		}); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "loan.disbursed",
			Category:     entities.AuditCategoryLoan,
			ActorID:      &staffID,
			Action:       "create",
			ResourceType: "loan",
			ResourceID:   loan.ID.String(),
			NewValues: map[string]interface{}{
				"user_id":       loan.UserID.String(),
				"principal":     principal.String(),
				"interest_rate": rate.String(),
				"term_months":   loan.TermMonths,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	u.transactions.notify(ctx, &entities.NotifyInput{
		UserID:            loan.UserID,
		Type:              entities.NotificationLoanApproved,
		Title:             "Loan approved",
		Body:              principal.String() + " " + loan.Currency + " was paid into your wallet.",
		RelatedEntityType: "loan",
		RelatedEntityID:   loan.ID.String(),
	})
	return loan, schedule, nil
}

func (u *LoanUsecase) owned(ctx context.Context, userID, loanID uuid.UUID) (*entities.Loan, error) {
	loan, err := u.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != userID {
		return nil, domainerrors.NotFound("loan not found")
	}
	return loan, nil
}

// Get returns one of the user's loans with its schedule.
func (u *LoanUsecase) Get(ctx context.Context, userID, loanID uuid.UUID) (*entities.Loan, []*entities.LoanScheduleEntry, error) {
	loan, err := u.owned(ctx, userID, loanID)
	if err != nil {
		return nil, nil, err
	}
	schedule, err := u.repo.ListSchedule(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	return loan, schedule, nil
}

// List returns the user's loans.
func (u *LoanUsecase) List(ctx context.Context, userID uuid.UUID) ([]*entities.Loan, error) {
	return u.repo.ListByUser(ctx, userID)
}

// RepayInput is a manual repayment.
type RepayInput struct {
	WalletID       uuid.UUID `json:"walletId" binding:"required"`
	Amount         string    `json:"amount" binding:"required"`
	PIN            string    `json:"pin"`
	IdempotencyKey string    `json:"idempotencyKey"`
	IP             string    `json:"-"`
}

// Repay applies amount to the oldest unpaid instalments.
func (u *LoanUsecase) Repay(ctx context.Context, userID, loanID uuid.UUID, input *RepayInput) (*entities.Transaction, error) {
	ctx = detach(ctx)
	loan, err := u.owned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != entities.LoanStatusActive {
		return nil, domainerrors.InvalidState("loan is " + string(loan.Status))
	}
	wallet, err := u.ledger.GetWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.Currency != loan.Currency {
		return nil, domainerrors.Validation("currency mismatch", map[string]string{"walletId": "wallet must be in " + loan.Currency})
	}
	cur, err := u.ledger.Currency(ctx, loan.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(input.Amount, cur)
	if err != nil {
		return nil, err
	}
	ref := input.IdempotencyKey
	if ref == "" {
		ref = newReference(refPrefixLoan)
	}

	var (
		txn      *entities.Transaction
		replayed bool
	)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		locked, err := u.transactions.walletRepo.GetByID(u.uow.WithLock(txCtx), wallet.ID)
		if err != nil {
			return err
		}
		if existing, err := u.transactions.replay(txCtx, "repayment:"+ref); err != nil || existing != nil {
			txn, replayed = existing, true
			return err
		}
		if err := u.transactions.authorize(txCtx, locked, input.PIN, input.IP); err != nil {
			return err
		}
		entries, err := u.repo.ListSchedule(u.uow.WithLock(txCtx), loan.ID)
		if err != nil {
			return err
		}
		txn, err = u.settle(txCtx, loan, wallet.ID, entries, amount, "repayment:"+ref, &userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		u.notifyRepayment(ctx, loan, txn)
	}
	return txn, nil
}

// settle debits amount and allocates it to unpaid entries in sequence
// order. Runs inside the caller's unit of work.
func (u *LoanUsecase) settle(ctx context.Context, loan *entities.Loan, walletID uuid.UUID, entries []*entities.LoanScheduleEntry, amount decimal.Decimal, ref string, actor *uuid.UUID) (*entities.Transaction, error) {
	outstanding := decimal.Zero
	for _, e := range entries {
		if e.Status != entities.ScheduleStatusPaid {
			outstanding = outstanding.Add(e.AmountDue())
		}
	}
	if !outstanding.IsPositive() {
		return nil, domainerrors.InvalidState("nothing left to repay")
	}
	if amount.GreaterThan(outstanding) {
		return nil, domainerrors.Validation("amount exceeds outstanding balance", map[string]string{"amount": "at most " + outstanding.String()})
	}
	txn, err := u.transactions.Post(ctx, PostingInput{
		WalletID:          walletID,
		Direction:         entities.DirectionDebit,
		Amount:            amount,
		Type:              entities.TransactionTypeLoanRepayment,
		Description:       "Loan repayment",
		ExternalReference: ref,
		RelatedID:         &loan.ID,
		ActorID:           actor,
	})
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	remaining := amount
	paidAll := true
	for _, e := range entries {
		if e.Status == entities.ScheduleStatusPaid {
			continue
		}
		if remaining.IsPositive() {
			portion := decimal.Min(remaining, e.AmountDue())
			e.AmountPaid = e.AmountPaid.Add(portion)
			remaining = remaining.Sub(portion)
			if !e.AmountDue().IsPositive() {
				e.Status = entities.ScheduleStatusPaid
				e.PaidAt = null.TimeFrom(now)
				e.TransactionID = &txn.ID
			}
			e.UpdatedAt = now
			if err := u.repo.UpdateScheduleEntry(ctx, e); err != nil {
				return nil, err
			}
		}
		if e.Status != entities.ScheduleStatusPaid {
			paidAll = false
		}
	}
	if paidAll {
		loan.Status = entities.LoanStatusPaid
		loan.UpdatedAt = now
		if err := u.repo.Update(ctx, loan); err != nil {
			return nil, err
		}
	}
	err = u.audit.Record(ctx, AuditEntry{
		EventType:    "loan.repaid",
		Category:     entities.AuditCategoryLoan,
		ActorID:      actor,
		Action:       "update",
		ResourceType: "loan",
		ResourceID:   loan.ID.String(),
		NewValues: map[string]interface{}{
			"amount":         amount.String(),
			"transaction_id": txn.ID.String(),
			"loan_status":    string(loan.Status),
		},
	})
	return txn, err
}

func (u *LoanUsecase) notifyRepayment(ctx context.Context, loan *entities.Loan, txn *entities.Transaction) {
	u.transactions.notify(ctx, &entities.NotifyInput{
		UserID:            loan.UserID,
		Type:              entities.NotificationLoanRepayment,
		Title:             "Loan repayment received",
		Body:              txn.Amount.String() + " " + loan.Currency + " was applied to your loan.",
		RelatedEntityType: "loan",
		RelatedEntityID:   loan.ID.String(),
	})
}

// ConfigureAutoRepayment creates or replaces the loan's mandate and
// reactivates it.
func (u *LoanUsecase) ConfigureAutoRepayment(ctx context.Context, userID, loanID uuid.UUID, input *entities.AutoRepaymentInput) (*entities.AutoRepayment, error) {
	loan, err := u.owned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != entities.LoanStatusActive {
		return nil, domainerrors.InvalidState("loan is " + string(loan.Status))
	}
	wallet, err := u.ledger.GetWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.Currency != loan.Currency {
		return nil, domainerrors.Validation("currency mismatch", map[string]string{"walletId": "wallet must be in " + loan.Currency})
	}
	if input.DaysBeforeDue < 0 || input.MaxRetryAttempts < 0 || input.RetryIntervalHours < 0 {
		return nil, domainerrors.Validation("invalid mandate", map[string]string{"daysBeforeDue": "values must not be negative"})
	}

	now := nowFunc()
	mandate, err := u.repo.GetAutoRepaymentByLoan(ctx, loan.ID)
	created := false
	if err != nil {
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		mandate = &entities.AutoRepayment{ID: utils.GenerateUUIDv7(), LoanID: loan.ID, CreatedAt: now}
		created = true
	}
	mandate.WalletID = wallet.ID
	mandate.Status = entities.AutoRepaymentActive
	mandate.DaysBeforeDue = orDefault(input.DaysBeforeDue, DefaultDaysBeforeDue)
	mandate.MaxRetryAttempts = orDefault(input.MaxRetryAttempts, DefaultMaxRetryAttempts)
	mandate.RetryIntervalHours = orDefault(input.RetryIntervalHours, DefaultRetryIntervalHours)
	mandate.RetryCount = 0
	mandate.NextRetryAt = null.Time{}
	mandate.LastError = null.String{}
	mandate.UpdatedAt = now

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if created {
			err = u.repo.CreateAutoRepayment(txCtx, mandate)
		} else {
			err = u.repo.UpdateAutoRepayment(txCtx, mandate)
		}
		if err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "loan.auto_repayment_configured",
			Category:     entities.AuditCategoryLoan,
			ActorID:      &userID,
			Action:       "update",
			ResourceType: "auto_repayment",
			ResourceID:   mandate.ID.String(),
			NewValues: map[string]interface{}{
				"wallet_id":            wallet.ID.String(),
				"days_before_due":      mandate.DaysBeforeDue,
				"max_retry_attempts":   mandate.MaxRetryAttempts,
				"retry_interval_hours": mandate.RetryIntervalHours,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return mandate, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// CancelAutoRepayment stops the loan's mandate.
func (u *LoanUsecase) CancelAutoRepayment(ctx context.Context, userID, loanID uuid.UUID) (*entities.AutoRepayment, error) {
	if _, err := u.owned(ctx, userID, loanID); err != nil {
		return nil, err
	}
	mandate, err := u.repo.GetAutoRepaymentByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	mandate.Status = entities.AutoRepaymentCancelled
	mandate.UpdatedAt = nowFunc()
	if err := u.repo.UpdateAutoRepayment(ctx, mandate); err != nil {
		return nil, err
	}
	return mandate, nil
}

// ProcessAutoRepayments collects instalments falling due within each active
// mandate's lead time. A failed debit is retried after the mandate's
// interval; exhausting the retries suspends the mandate.
func (u *LoanUsecase) ProcessAutoRepayments(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	collected := 0
	after := uuid.Nil
	for {
		mandates, err := u.repo.ListActiveAutoRepayments(ctx, after, batch)
		if err != nil {
			return collected, err
		}
		for _, m := range mandates {
			if err := ctx.Err(); err != nil {
				return collected, err
			}
			after = m.ID
			ok, err := u.collect(ctx, m)
			if err != nil {
				logger.Error(ctx, "Auto-repayment failed", zap.String("mandate_id", m.ID.String()), zap.Error(err))
				continue
			}
			if ok {
				collected++
			}
		}
		if len(mandates) < batch {
			return collected, nil
		}
	}
}

func (u *LoanUsecase) collect(ctx context.Context, m *entities.AutoRepayment) (bool, error) {
	now := nowFunc()
	if m.NextRetryAt.Valid && now.Before(m.NextRetryAt.Time) {
		return false, nil
	}
	loan, err := u.repo.GetByID(ctx, m.LoanID)
	if err != nil {
		return false, err
	}
	if loan.Status != entities.LoanStatusActive {
		return false, nil
	}
	cutoff := now.AddDate(0, 0, m.DaysBeforeDue)
	due, err := u.repo.ListUnpaidDueBefore(ctx, loan.ID, cutoff)
	if err != nil {
		return false, err
	}
	if len(due) == 0 {
		return false, nil
	}

	// the read above only filters; a manual repayment may land before the
	// lock, so the debit is sized from the locked rows
	var (
		txn     *entities.Transaction
		settled bool
	)
	payErr := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		lockCtx := u.uow.WithLock(txCtx)
		if _, err := u.transactions.walletRepo.GetByID(lockCtx, m.WalletID); err != nil {
			return err
		}
		current, err := u.repo.GetByID(lockCtx, loan.ID)
		if err != nil {
			return err
		}
		if current.Status != entities.LoanStatusActive {
			return nil
		}
		entries, err := u.repo.ListUnpaidDueBefore(lockCtx, loan.ID, cutoff)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		amount := decimal.Zero
		for _, e := range entries {
			amount = amount.Add(e.AmountDue())
		}
		loan = current
		ref := fmt.Sprintf("autorepay:%s:%d", entries[len(entries)-1].ID, m.RetryCount)
		txn, err = u.settle(txCtx, loan, m.WalletID, entries, amount, ref, nil)
		settled = err == nil
		return err
	})
	if payErr == nil && !settled {
		return false, nil
	}

	m.LastAttemptAt = null.TimeFrom(now)
	m.UpdatedAt = now
	if payErr == nil {
		m.RetryCount = 0
		m.NextRetryAt = null.Time{}
		m.LastError = null.String{}
		if err := u.repo.UpdateAutoRepayment(ctx, m); err != nil {
			return true, err
		}
		u.notifyRepayment(ctx, loan, txn)
		return true, nil
	}

	m.RetryCount++
	m.LastError = null.StringFrom(payErr.Error())
	suspended := m.RetryCount >= m.MaxRetryAttempts
	if suspended {
		m.Status = entities.AutoRepaymentSuspended
		m.NextRetryAt = null.Time{}
	} else {
		m.NextRetryAt = null.TimeFrom(now.Add(time.Duration(m.RetryIntervalHours) * time.Hour))
	}
	if err := u.repo.UpdateAutoRepayment(ctx, m); err != nil {
		return false, err
	}
	logger.Warn(ctx, "Auto-repayment attempt failed",
		zap.String("loan_id", loan.ID.String()),
		zap.Int("retry_count", m.RetryCount),
		zap.Bool("suspended", suspended),
		zap.Error(payErr),
	)
	if suspended {
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "loan.auto_repayment_suspended",
			Category:     entities.AuditCategoryLoan,
			Severity:     entities.SeverityWarning,
			Action:       "update",
			ResourceType: "auto_repayment",
			ResourceID:   m.ID.String(),
			NewValues:    map[string]interface{}{"status": string(m.Status), "last_error": payErr.Error()},
		})
		u.transactions.notify(ctx, &entities.NotifyInput{
			UserID:            loan.UserID,
			Type:              entities.NotificationAutoRepaySuspended,
			Priority:          entities.PriorityHigh,
			Title:             "Auto-repayment suspended",
			Body:              "We could not collect your loan repayment. Fund your wallet and repay manually.",
			RelatedEntityType: "loan",
			RelatedEntityID:   loan.ID.String(),
		})
	}
	return false, nil
}

// SweepOverdue marks unpaid instalments past their due date overdue.
func (u *LoanUsecase) SweepOverdue(ctx context.Context, limit int) (int, error) {
	candidates, err := u.repo.ListOverdueCandidates(ctx, nowFunc(), limit)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		entry, loan, err := u.markOverdue(ctx, c.ID)
		if err != nil {
			logger.Error(ctx, "Overdue sweep failed", zap.String("entry_id", c.ID.String()), zap.Error(err))
			continue
		}
		if entry == nil {
			continue
		}
		marked++
		u.transactions.notify(ctx, &entities.NotifyInput{
			UserID:            loan.UserID,
			Type:              entities.NotificationLoanOverdue,
			Priority:          entities.PriorityHigh,
			Title:             "Loan repayment overdue",
			Body:              fmt.Sprintf("Instalment %d of %s %s was due on %s.", entry.Sequence, entry.AmountDue().String(), loan.Currency, entry.DueDate.Format("2006-01-02")),
			RelatedEntityType: "loan",
			RelatedEntityID:   loan.ID.String(),
		})
	}
	return marked, nil
}

func (u *LoanUsecase) markOverdue(ctx context.Context, entryID uuid.UUID) (*entities.LoanScheduleEntry, *entities.Loan, error) {
	var (
		entry *entities.LoanScheduleEntry
		loan  *entities.Loan
	)
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		e, err := u.repo.GetScheduleEntry(u.uow.WithLock(txCtx), entryID)
		if err != nil {
			return err
		}
		if e.Status != entities.ScheduleStatusDue || !e.DueDate.Before(nowFunc()) {
			return nil
		}
		l, err := u.repo.GetByID(txCtx, e.LoanID)
		if err != nil {
			return err
		}
		e.Status = entities.ScheduleStatusOverdue
		e.UpdatedAt = nowFunc()
		if err := u.repo.UpdateScheduleEntry(txCtx, e); err != nil {
			return err
		}
		entry, loan = e, l
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "loan.instalment_overdue",
			Category:     entities.AuditCategoryLoan,
			Severity:     entities.SeverityWarning,
			Action:       "update",
			ResourceType: "loan_schedule",
			ResourceID:   e.ID.String(),
			OldValues:    map[string]interface{}{"status": string(entities.ScheduleStatusDue)},
			NewValues: map[string]interface{}{
				"status":     string(entities.ScheduleStatusOverdue),
				"loan_id":    l.ID.String(),
				"amount_due": e.AmountDue().String(),
			},
		})
	})
	return entry, loan, err
}
