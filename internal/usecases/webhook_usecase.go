package usecases

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/metrics"
)

// WebhookUsecase authenticates provider callbacks and routes them into the
// transaction engine.
type WebhookUsecase struct {
	handlers     WebhookProviders
	transactions *TransactionUsecase
	audit        *AuditUsecase
}

// NewWebhookUsecase creates a new webhook usecase
func NewWebhookUsecase(handlers WebhookProviders, transactions *TransactionUsecase, audit *AuditUsecase) *WebhookUsecase {
	return &WebhookUsecase{handlers: handlers, transactions: transactions, audit: audit}
}

// Handle verifies the signature, decodes the event and applies it. The
// returned transaction is nil for events that need no action.
func (u *WebhookUsecase) Handle(ctx context.Context, provider string, header http.Header, body []byte) (*entities.Transaction, error) {
	handler, err := u.handlers.Webhook(provider)
	if err != nil {
		return nil, domainerrors.NotFound("unknown webhook provider")
	}
	if err := handler.VerifySignature(header, body); err != nil {
		metrics.WebhookEvents.WithLabelValues(provider, "rejected").Inc()
		u.audit.RecordSafe(ctx, AuditEntry{
			EventType:    "webhook.rejected",
			Category:     entities.AuditCategorySystem,
			Severity:     entities.SeverityWarning,
			Action:       "verify",
			ResourceType: "webhook",
			ResourceID:   provider,
		})
		return nil, domainerrors.BadRequest("invalid webhook signature")
	}
	ev, err := handler.ParseWebhook(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(provider, "malformed").Inc()
		return nil, domainerrors.BadRequest("malformed webhook payload")
	}
	ev.Provider = handler.Name()

	txn, err := u.apply(ctx, ev)
	metrics.WebhookEvents.WithLabelValues(provider, string(ev.Kind)).Inc()
	if err != nil {
		logger.Error(ctx, "Webhook processing failed",
			zap.String("provider", provider),
			zap.String("event", ev.Event),
			zap.String("reference", ev.Reference),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Info(ctx, "Webhook processed",
		zap.String("provider", provider),
		zap.String("event", ev.Event),
		zap.String("kind", string(ev.Kind)),
		zap.String("reference", ev.Reference),
	)
	return txn, nil
}

func (u *WebhookUsecase) apply(ctx context.Context, ev *providers.WebhookEvent) (*entities.Transaction, error) {
	switch ev.Kind {
	case providers.WebhookDeposit:
		return u.transactions.ApplyDepositEvent(ctx, ev)
	case providers.WebhookWithdrawal:
		return u.transactions.ApplyWithdrawalEvent(ctx, ev)
	case providers.WebhookAccountCredit:
		return u.transactions.CreditByAccountNumber(ctx, &entities.AccountCreditInput{
			AccountNumber:     ev.AccountNumber,
			Amount:            ev.Amount,
			Currency:          ev.Currency,
			ExternalReference: ev.Reference,
			Provider:          ev.Provider,
			SenderName:        ev.SenderName,
		})
	case providers.WebhookCardSpend:
		txn, err := u.transactions.CaptureCardSpend(ctx, &entities.CardSpendInput{
			ProviderCardID:    ev.ProviderCardID,
			Amount:            ev.Amount,
			Merchant:          ev.Merchant,
			ExternalReference: ev.Reference,
		})
		if errors.Is(err, domainerrors.ErrLimitExceeded) || errors.Is(err, domainerrors.ErrInsufficientBalance) {
			// Declined spends are recorded as FAILED and acknowledged.
			return nil, nil
		}
		return txn, err
	}
	return nil, nil
}
