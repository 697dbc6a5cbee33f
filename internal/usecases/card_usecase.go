package usecases

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

// CardUsecase issues and controls provider cards. Card numbers and CVVs are
// returned once at issue time and never stored.
type CardUsecase struct {
	uow          repositories.UnitOfWork
	cardRepo     repositories.CardRepository
	walletRepo   repositories.WalletRepository
	userRepo     repositories.UserRepository
	ledger       *LedgerUsecase
	transactions *TransactionUsecase
	providers    PaymentProviders
	notifier     Notifier
	audit        *AuditUsecase
}

// IssuedCard is the one-time view of a new card.
type IssuedCard struct {
	Card       *entities.Card `json:"card"`
	CardNumber string         `json:"cardNumber"`
	CVV        string         `json:"cvv"`
}

// NewCardUsecase creates a new card usecase
func NewCardUsecase(
	uow repositories.UnitOfWork,
	cardRepo repositories.CardRepository,
	walletRepo repositories.WalletRepository,
	userRepo repositories.UserRepository,
	ledger *LedgerUsecase,
	transactions *TransactionUsecase,
	paymentProviders PaymentProviders,
	notifier Notifier,
	audit *AuditUsecase,
) *CardUsecase {
	return &CardUsecase{
		uow:          uow,
		cardRepo:     cardRepo,
		walletRepo:   walletRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		transactions: transactions,
		providers:    paymentProviders,
		notifier:     notifier,
		audit:        audit,
	}
}

// Create issues a card against one of the user's active wallets.
func (u *CardUsecase) Create(ctx context.Context, userID uuid.UUID, input *entities.CreateCardInput) (*IssuedCard, error) {
	wallet, err := u.ledger.GetWallet(ctx, userID, input.WalletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, domainerrors.InvalidState("wallet is " + string(wallet.Status))
	}
	cur, err := u.ledger.Currency(ctx, wallet.Currency)
	if err != nil {
		return nil, err
	}
	limit, err := parseOptionalAmount(input.MonthlyLimit, cur, "monthlyLimit")
	if err != nil {
		return nil, err
	}
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	provider, err := u.providers.Card(wallet.Currency)
	if err != nil {
		return nil, err
	}
	cardType := strings.ToLower(strings.TrimSpace(input.CardType))
	if cardType == "" {
		cardType = "virtual"
	}
	result, err := provider.CreateCard(ctx, providers.CardRequest{
		Customer: customerOf(user),
		Currency: wallet.Currency,
		CardType: cardType,
		Brand:    input.Brand,
		Amount:   decimal.Zero,
	})
	if err != nil {
		return nil, domainerrors.ProviderError("card issue failed", err)
	}

	now := nowFunc()
	card := &entities.Card{
		ID:             utils.GenerateUUIDv7(),
		UserID:         userID,
		WalletID:       wallet.ID,
		Provider:       provider.Name(),
		ProviderCardID: result.ProviderCardID,
		MaskedPAN:      maskPAN(result.CardNumber),
		Expiry:         result.Expiry,
		Brand:          result.Brand,
		CardType:       cardType,
		Currency:       wallet.Currency,
		Status:         entities.CardStatusActive,
		MonthlyLimit:   limit,
		SpentThisMonth: decimal.Zero,
		PeriodStart:    entities.MonthStart(now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if n := len(result.CardNumber); n >= 4 {
		card.Last4 = result.CardNumber[n-4:]
	}
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.cardRepo.Create(txCtx, card); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "card.issued",
			Category:     entities.AuditCategoryCard,
			ActorID:      &userID,
			ActorEmail:   user.Contact(),
			Action:       "create",
			ResourceType: "card",
			ResourceID:   card.ID.String(),
			NewValues: map[string]interface{}{
				"masked_pan":    card.MaskedPAN,
				"wallet_id":     wallet.ID.String(),
				"monthly_limit": limit.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	u.transactions.notify(ctx, &entities.NotifyInput{
		UserID:            userID,
		Type:              entities.NotificationCardIssued,
		Title:             "Card issued",
		Body:              "Your card ending " + card.Last4 + " is ready to use.",
		RelatedEntityType: "card",
		RelatedEntityID:   card.ID.String(),
	})
	return &IssuedCard{Card: card, CardNumber: result.CardNumber, CVV: result.CVV}, nil
}

func (u *CardUsecase) owned(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	card, err := u.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, domainerrors.NotFound("card not found")
	}
	return card, nil
}

// Get returns one of the user's cards.
func (u *CardUsecase) Get(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	card, err := u.owned(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	card.RollPeriod(nowFunc())
	return card, nil
}

// List returns the user's cards.
func (u *CardUsecase) List(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error) {
	cards, err := u.cardRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	for _, c := range cards {
		c.RollPeriod(now)
	}
	return cards, nil
}

// Update changes the monthly limit. Zero removes the limit.
func (u *CardUsecase) Update(ctx context.Context, userID, cardID uuid.UUID, input *entities.UpdateCardInput) (*entities.Card, error) {
	card, err := u.owned(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if card.Status == entities.CardStatusBlocked {
		return nil, domainerrors.InvalidState("card is blocked")
	}
	cur, err := u.ledger.Currency(ctx, card.Currency)
	if err != nil {
		return nil, err
	}
	limit, err := parseOptionalAmount(input.MonthlyLimit, cur, "monthlyLimit")
	if err != nil {
		return nil, err
	}
	old := card.MonthlyLimit
	card.MonthlyLimit = limit
	card.UpdatedAt = nowFunc()
	card.RollPeriod(card.UpdatedAt)
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.cardRepo.Update(txCtx, card); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "card.updated",
			Category:     entities.AuditCategoryCard,
			ActorID:      &userID,
			Action:       "update",
			ResourceType: "card",
			ResourceID:   card.ID.String(),
			OldValues:    map[string]interface{}{"monthly_limit": old.String()},
			NewValues:    map[string]interface{}{"monthly_limit": limit.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Freeze suspends an active card at the provider and locally.
func (u *CardUsecase) Freeze(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	return u.setStatus(ctx, userID, cardID, entities.CardStatusFrozen)
}

// Unfreeze reactivates a frozen card.
func (u *CardUsecase) Unfreeze(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	return u.setStatus(ctx, userID, cardID, entities.CardStatusActive)
}

// Block terminates the card. Blocking is irreversible.
func (u *CardUsecase) Block(ctx context.Context, userID, cardID uuid.UUID) (*entities.Card, error) {
	return u.setStatus(ctx, userID, cardID, entities.CardStatusBlocked)
}

func (u *CardUsecase) setStatus(ctx context.Context, userID, cardID uuid.UUID, to entities.CardStatus) (*entities.Card, error) {
	card, err := u.owned(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	from := card.Status
	switch {
	case from == entities.CardStatusBlocked:
		return nil, domainerrors.InvalidState("card is blocked")
	case from == to:
		return nil, domainerrors.InvalidState("card is already " + string(to))
	}
	provider, err := u.providers.CardByName(card.Provider)
	if err != nil {
		return nil, err
	}
	switch to {
	case entities.CardStatusFrozen:
		err = provider.FreezeCard(ctx, card.ProviderCardID)
	case entities.CardStatusActive:
		err = provider.UnfreezeCard(ctx, card.ProviderCardID)
	case entities.CardStatusBlocked:
		err = provider.BlockCard(ctx, card.ProviderCardID)
	}
	if err != nil {
		return nil, domainerrors.ProviderError("card status change failed", err)
	}

	card.Status = to
	card.UpdatedAt = nowFunc()
	severity := entities.SeverityInfo
	if to == entities.CardStatusBlocked {
		severity = entities.SeverityWarning
	}
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.cardRepo.Update(txCtx, card); err != nil {
			return err
		}
		return u.audit.Record(txCtx, AuditEntry{
			EventType:    "card.status_changed",
			Category:     entities.AuditCategoryCard,
			Severity:     severity,
			ActorID:      &userID,
			Action:       "update",
			ResourceType: "card",
			ResourceID:   card.ID.String(),
			OldValues:    map[string]interface{}{"status": string(from)},
			NewValues:    map[string]interface{}{"status": string(to)},
		})
	})
	if err != nil {
		logger.Error(ctx, "Card status diverged from provider",
			zap.String("card_id", card.ID.String()),
			zap.String("provider_status", string(to)),
			zap.Error(err),
		)
		return nil, err
	}
	return card, nil
}

// Fund records a funding entry against an active card.
func (u *CardUsecase) Fund(ctx context.Context, userID, cardID uuid.UUID, input *entities.FundCardInput) (*entities.Transaction, error) {
	card, err := u.owned(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if card.Status != entities.CardStatusActive {
		return nil, domainerrors.InvalidState("card is " + string(card.Status))
	}
	return u.transactions.RecordCardFunding(ctx, card, input.Amount, userID)
}

// Spend captures a provider-reported card authorisation.
func (u *CardUsecase) Spend(ctx context.Context, input *entities.CardSpendInput) (*entities.Transaction, error) {
	return u.transactions.CaptureCardSpend(ctx, input)
}
