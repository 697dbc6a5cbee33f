package usecases

import (
	"context"
	"strings"
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

var daysPerYear = decimal.NewFromInt(365)

// InvestmentUsecase opens fixed-term investments and runs their payouts.
type InvestmentUsecase struct {
	uow          repositories.UnitOfWork
	repo         repositories.InvestmentRepository
	ledger       *LedgerUsecase
	transactions *TransactionUsecase
	notifier     Notifier
	audit        *AuditUsecase
}

// NewInvestmentUsecase creates a new investment usecase
func NewInvestmentUsecase(
	uow repositories.UnitOfWork,
	repo repositories.InvestmentRepository,
	ledger *LedgerUsecase,
	transactions *TransactionUsecase,
	notifier Notifier,
	audit *AuditUsecase,
) *InvestmentUsecase {
	return &InvestmentUsecase{
		uow:          uow,
		repo:         repo,
		ledger:       ledger,
		transactions: transactions,
		notifier:     notifier,
		audit:        audit,
	}
}

// ExpectedReturns is simple interest: principal x rate% x days/365, rounded
// to the currency's places.
func ExpectedReturns(principal, ratePercent decimal.Decimal, days int, places int32) decimal.Decimal {
	interest := principal.Mul(ratePercent).Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
	return money.Round(interest, places)
}

// ProductInput defines a new investment product.
type ProductInput struct {
	Name                string
	Currency            string
	InterestRate        string
	DurationDays        int
	MinAmount           string
	AllowsAutoRenew     bool
	PayoutFrequencyDays int
}

// CreateProduct adds a product to the catalogue.
func (u *InvestmentUsecase) CreateProduct(ctx context.Context, input *ProductInput) (*entities.InvestmentProduct, error) {
	cur, err := u.ledger.Currency(ctx, input.Currency)
	if err != nil {
		return nil, err
	}
	rate, err := money.Parse(input.InterestRate)
	if err != nil || !rate.IsPositive() {
		return nil, domainerrors.Validation("invalid interest rate", map[string]string{"interestRate": "must be a positive percentage"})
	}
	if input.DurationDays <= 0 {
		return nil, domainerrors.Validation("invalid duration", map[string]string{"durationDays": "must be positive"})
	}
	if input.PayoutFrequencyDays < 0 || input.PayoutFrequencyDays > input.DurationDays {
		return nil, domainerrors.Validation("invalid payout frequency", map[string]string{"payoutFrequencyDays": "between 0 and the duration"})
	}
	minAmount, err := parseOptionalAmount(input.MinAmount, cur, "minAmount")
	if err != nil {
		return nil, err
	}
	p := &entities.InvestmentProduct{
		ID:                  utils.GenerateUUIDv7(),
		Name:                strings.TrimSpace(input.Name),
		Currency:            cur.Code,
		InterestRate:        rate,
		DurationDays:        input.DurationDays,
		MinAmount:           minAmount,
		AllowsAutoRenew:     input.AllowsAutoRenew,
		PayoutFrequencyDays: input.PayoutFrequencyDays,
		IsActive:            true,
		CreatedAt:           nowFunc(),
	}
	if err := u.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns the active catalogue.
func (u *InvestmentUsecase) ListProducts(ctx context.Context) ([]*entities.InvestmentProduct, error) {
	return u.repo.ListProducts(ctx)
}

// Open moves principal out of the wallet into a new investment and
// schedules its periodic returns.
func (u *InvestmentUsecase) Open(ctx context.Context, userID uuid.UUID, input *entities.OpenInvestmentInput) (*entities.Investment, error) {
	ctx = detach(ctx)
	product, err := u.repo.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, domainerrors.InvalidState("product is not available")
	}
	wallet, err := u.ledger.GetWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.Currency != product.Currency {
		return nil, domainerrors.Validation("currency mismatch", map[string]string{"walletId": "wallet must be in " + product.Currency})
	}
	cur, err := u.ledger.Currency(ctx, product.Currency)
	if err != nil {
		return nil, err
	}
	principal, err := parseAmount(input.Amount, cur)
	if err != nil {
		return nil, err
	}
	if principal.LessThan(product.MinAmount) {
		return nil, domainerrors.Validation("amount below product minimum", map[string]string{"amount": "at least " + product.MinAmount.String()})
	}
	if input.AutoRenew && !product.AllowsAutoRenew {
		return nil, domainerrors.Validation("product does not renew", map[string]string{"autoRenew": "not supported by product"})
	}

	inv := u.newInvestment(userID, wallet.ID, product, principal, cur.DecimalPlaces, nowFunc())
	inv.AutoRenew = input.AutoRenew
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		locked, err := u.walletRepoLocked(txCtx, wallet.ID)
		if err != nil {
			return err
		}
		if err := u.transactions.authorize(txCtx, locked, input.PIN, input.IP); err != nil {
			return err
		}
		return u.start(txCtx, inv, product, cur.DecimalPlaces, &userID)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (u *InvestmentUsecase) walletRepoLocked(ctx context.Context, walletID uuid.UUID) (*entities.Wallet, error) {
	return u.transactions.walletRepo.GetByID(u.uow.WithLock(ctx), walletID)
}

func (u *InvestmentUsecase) newInvestment(userID, walletID uuid.UUID, product *entities.InvestmentProduct, principal decimal.Decimal, places int32, start time.Time) *entities.Investment {
	return &entities.Investment{
		ID:              utils.GenerateUUIDv7(),
		UserID:          userID,
		WalletID:        walletID,
		ProductID:       product.ID,
		Currency:        product.Currency,
		Principal:       principal,
		InterestRate:    product.InterestRate,
		DurationDays:    product.DurationDays,
		StartDate:       start,
		MaturityDate:    start.AddDate(0, 0, product.DurationDays),
		Status:          entities.InvestmentStatusActive,
		ExpectedReturns: ExpectedReturns(principal, product.InterestRate, product.DurationDays, places),
		ActualReturns:   decimal.Zero,
		CreatedAt:       start,
		UpdatedAt:       start,
	}
}

// start debits the principal, stores the investment and its return
// schedule. Runs inside the caller's unit of work.
func (u *InvestmentUsecase) start(ctx context.Context, inv *entities.Investment, product *entities.InvestmentProduct, places int32, actor *uuid.UUID) error {
	if err := u.repo.Create(ctx, inv); err != nil {
		return err
	}
	if _, err := u.transactions.Post(ctx, PostingInput{
		WalletID:          inv.WalletID,
		Direction:         entities.DirectionDebit,
		Amount:            inv.Principal,
		Type:              entities.TransactionTypeInvestment,
		Description:       "Investment in " + product.Name,
		ExternalReference: "investment:" + inv.ID.String(),
		RelatedID:         &inv.ID,
		ActorID:           actor,
	}); err != nil {
		return err
	}
	for _, r := range returnSchedule(inv, product.PayoutFrequencyDays, places) {
		if err := u.repo.CreateReturn(ctx, r); err != nil {
			return err
		}
	}
	return u.audit.Record(ctx, AuditEntry{
		EventType:    "investment.opened",
		Category:     entities.AuditCategoryInvestment,
		ActorID:      actor,
		Action:       "create",
		ResourceType: "investment",
		ResourceID:   inv.ID.String(),
		NewValues: map[string]interface{}{
			"principal":        inv.Principal.String(),
			"interest_rate":    inv.InterestRate.String(),
			"duration_days":    inv.DurationDays,
			"expected_returns": inv.ExpectedReturns.String(),
			"renewed_from":     actorString(inv.RenewedFromID),
		},
	})
}

// returnSchedule splits the expected returns into payouts every freq days
// before maturity. The last payout absorbs rounding. Returns not covered by
// the schedule are paid at maturity.
func returnSchedule(inv *entities.Investment, freq int, places int32) []*entities.InvestmentReturn {
	if freq <= 0 || freq >= inv.DurationDays || !inv.ExpectedReturns.IsPositive() {
		return nil
	}
	periods := inv.DurationDays / freq
	share := money.Round(inv.ExpectedReturns.Div(decimal.NewFromInt(int64(periods))), places)
	out := make([]*entities.InvestmentReturn, 0, periods)
	paid := decimal.Zero
	for i := 1; i <= periods; i++ {
		amount := share
		if i == periods {
			amount = inv.ExpectedReturns.Sub(paid)
		}
		paid = paid.Add(amount)
		out = append(out, &entities.InvestmentReturn{
			ID:           utils.GenerateUUIDv7(),
			InvestmentID: inv.ID,
			Amount:       amount,
			PayoutDate:   inv.StartDate.AddDate(0, 0, i*freq),
			CreatedAt:    inv.StartDate,
		})
	}
	return out
}

// Get returns one of the user's investments with its return schedule.
func (u *InvestmentUsecase) Get(ctx context.Context, userID, id uuid.UUID) (*entities.Investment, []*entities.InvestmentReturn, error) {
	inv, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if inv.UserID != userID {
		return nil, nil, domainerrors.NotFound("investment not found")
	}
	returns, err := u.repo.ListReturns(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inv, returns, nil
}

// List returns the user's investments.
func (u *InvestmentUsecase) List(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error) {
	return u.repo.ListByUser(ctx, userID)
}

// Portfolio returns the user's aggregate for a currency.
func (u *InvestmentUsecase) Portfolio(ctx context.Context, userID uuid.UUID, currency string) (*entities.Portfolio, error) {
	return u.repo.GetPortfolio(ctx, userID, strings.ToUpper(currency))
}

// ProcessMaturity pays out principal plus outstanding returns for every
// investment past its maturity date. Auto-renewing investments roll the
// principal into a new term.
func (u *InvestmentUsecase) ProcessMaturity(ctx context.Context, limit int) (int, error) {
	due, err := u.repo.ListDueForMaturity(ctx, nowFunc(), limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, inv := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		matured, err := u.mature(ctx, inv.ID)
		if err != nil {
			logger.Error(ctx, "Investment maturity failed", zap.String("investment_id", inv.ID.String()), zap.Error(err))
			continue
		}
		if matured != nil {
			processed++
		}
	}
	return processed, nil
}

func (u *InvestmentUsecase) mature(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	var (
		inv     *entities.Investment
		payout  decimal.Decimal
		renewed *entities.Investment
	)
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		locked, err := u.repo.GetByID(u.uow.WithLock(txCtx), id)
		if err != nil {
			return err
		}
		if locked.Status != entities.InvestmentStatusActive {
			return nil
		}
		product, err := u.repo.GetProduct(txCtx, locked.ProductID)
		if err != nil {
			return err
		}
		cur, err := u.ledger.Currency(txCtx, locked.Currency)
		if err != nil {
			return err
		}
		outstanding := locked.ExpectedReturns.Sub(locked.ActualReturns)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}
		payout = locked.Principal.Add(outstanding)
		txn, err := u.transactions.Post(txCtx, PostingInput{
			WalletID:          locked.WalletID,
			Direction:         entities.DirectionCredit,
			Amount:            payout,
			Type:              entities.TransactionTypeInvestmentPayout,
			Description:       "Investment matured: " + product.Name,
			ExternalReference: "maturity:" + locked.ID.String(),
			RelatedID:         &locked.ID,
			Metadata: map[string]interface{}{
				"principal": locked.Principal.String(),
				"returns":   outstanding.String(),
			},
		})
		if err != nil {
			return err
		}
		returns, err := u.repo.ListReturns(txCtx, locked.ID)
		if err != nil {
			return err
		}
		now := nowFunc()
		for _, r := range returns {
			if r.IsPaid {
				continue
			}
			r.IsPaid = true
			r.PaidAt = null.TimeFrom(now)
			r.TransactionID = &txn.ID
			if err := u.repo.UpdateReturn(txCtx, r); err != nil {
				return err
			}
		}

		old := string(locked.Status)
		locked.Status = entities.InvestmentStatusMatured
		locked.ActualReturns = locked.ExpectedReturns
		locked.ActualMaturityDate = null.TimeFrom(now)
		locked.UpdatedAt = now
		if locked.AutoRenew && product.AllowsAutoRenew && product.IsActive {
			next := u.newInvestment(locked.UserID, locked.WalletID, product, locked.Principal, cur.DecimalPlaces, now)
			next.AutoRenew = true
			next.RenewedFromID = &locked.ID
			if err := u.start(txCtx, next, product, cur.DecimalPlaces, nil); err != nil {
				return err
			}
			locked.Status = entities.InvestmentStatusRenewed
			renewed = next
		}
		if err := u.repo.Update(txCtx, locked); err != nil {
			return err
		}
		inv = locked
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "investment.matured",
			Category:     entities.AuditCategoryInvestment,
			Action:       "update",
			ResourceType: "investment",
			ResourceID:   locked.ID.String(),
			OldValues:    map[string]interface{}{"status": old},
			NewValues: map[string]interface{}{
				"status":         string(locked.Status),
				"payout":         payout.String(),
				"transaction_id": txn.ID.String(),
			},
		})
	})
	if err != nil || inv == nil {
		return nil, err
	}

	body := "Your investment matured and " + payout.String() + " " + inv.Currency + " was paid to your wallet."
	if renewed != nil {
		body += " The principal was reinvested for another term."
	}
	u.transactions.notify(ctx, &entities.NotifyInput{
		UserID:            inv.UserID,
		Type:              entities.NotificationInvestmentMatured,
		Title:             "Investment matured",
		Body:              body,
		RelatedEntityType: "investment",
		RelatedEntityID:   inv.ID.String(),
	})
	return inv, nil
}

// ProcessReturns pays scheduled returns that have fallen due.
func (u *InvestmentUsecase) ProcessReturns(ctx context.Context, limit int) (int, error) {
	due, err := u.repo.ListDueReturns(ctx, nowFunc(), limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		paid, err := u.payReturn(ctx, r.ID)
		if err != nil {
			logger.Error(ctx, "Investment return payout failed", zap.String("return_id", r.ID.String()), zap.Error(err))
			continue
		}
		if paid {
			processed++
		}
	}
	return processed, nil
}

func (u *InvestmentUsecase) payReturn(ctx context.Context, returnID uuid.UUID) (bool, error) {
	var (
		ret *entities.InvestmentReturn
		inv *entities.Investment
	)
	err := u.uow.Do(detach(ctx), func(txCtx context.Context) error {
		r, err := u.repo.GetReturn(u.uow.WithLock(txCtx), returnID)
		if err != nil {
			return err
		}
		if r.IsPaid {
			return nil
		}
		i, err := u.repo.GetByID(u.uow.WithLock(txCtx), r.InvestmentID)
		if err != nil {
			return err
		}
		if i.Status != entities.InvestmentStatusActive {
			return nil
		}
		txn, err := u.transactions.Post(txCtx, PostingInput{
			WalletID:          i.WalletID,
			Direction:         entities.DirectionCredit,
			Amount:            r.Amount,
			Type:              entities.TransactionTypeInvestmentPayout,
			Description:       "Investment return",
			ExternalReference: "return:" + r.ID.String(),
			RelatedID:         &i.ID,
		})
		if err != nil {
			return err
		}
		now := nowFunc()
		r.IsPaid = true
		r.PaidAt = null.TimeFrom(now)
		r.TransactionID = &txn.ID
		if err := u.repo.UpdateReturn(txCtx, r); err != nil {
			return err
		}
		i.ActualReturns = i.ActualReturns.Add(r.Amount)
		i.UpdatedAt = now
		if err := u.repo.Update(txCtx, i); err != nil {
			return err
		}
		ret, inv = r, i
		return nil
	})
	if err != nil || ret == nil {
		return false, err
	}
	u.transactions.notify(ctx, &entities.NotifyInput{
		UserID:            inv.UserID,
		Type:              entities.NotificationInvestmentReturn,
		Title:             "Investment return paid",
		Body:              ret.Amount.String() + " " + inv.Currency + " was paid to your wallet.",
		RelatedEntityType: "investment",
		RelatedEntityID:   inv.ID.String(),
	})
	return true, nil
}

// RecalculatePortfolios rebuilds every (user, currency) aggregate.
func (u *InvestmentUsecase) RecalculatePortfolios(ctx context.Context) (int, error) {
	keys, err := u.repo.ListInvestorKeys(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := u.recalculate(ctx, key); err != nil {
			logger.Error(ctx, "Portfolio recalculation failed",
				zap.String("user_id", key.UserID.String()),
				zap.String("currency", key.Currency),
				zap.Error(err),
			)
			continue
		}
		done++
	}
	return done, nil
}

func (u *InvestmentUsecase) recalculate(ctx context.Context, key repositories.PortfolioKey) error {
	investments, err := u.repo.ListByUser(ctx, key.UserID)
	if err != nil {
		return err
	}
	p := &entities.Portfolio{
		ID:            utils.GenerateUUIDv7(),
		UserID:        key.UserID,
		Currency:      key.Currency,
		TotalInvested: decimal.Zero,
		TotalReturns:  decimal.Zero,
	}
	for _, inv := range investments {
		if inv.Currency != key.Currency {
			continue
		}
		p.TotalReturns = p.TotalReturns.Add(inv.ActualReturns)
		switch inv.Status {
		case entities.InvestmentStatusActive:
			p.TotalInvested = p.TotalInvested.Add(inv.Principal)
			p.ActiveCount++
		case entities.InvestmentStatusMatured, entities.InvestmentStatusRenewed:
			p.MaturedCount++
		}
	}
	p.RecalculatedAt = nowFunc()
	return u.repo.UpsertPortfolio(ctx, p)
}
