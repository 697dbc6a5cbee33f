package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/logger"
)

// InternalName is the registry name of the deterministic provider.
const InternalName = "internal"

const (
	internalRefPrefix = "INT-"
	failRefPrefix     = "FAIL-"
	pendingRefPrefix  = "PENDING-"
	InternalSignature = "X-Internal-Signature"
)

var failingCents = decimal.RequireFromString("0.13")

// Internal settles everything locally. Outcomes depend only on the request:
// amounts ending in .13 are rejected, FAIL- references fail on verify and
// PENDING- references never settle.
type Internal struct {
	webhookSecret string
}

// NewInternal builds the internal provider. webhookSecret signs callbacks.
func NewInternal(webhookSecret string) *Internal {
	return &Internal{webhookSecret: webhookSecret}
}

func (p *Internal) Name() string { return InternalName }

func (p *Internal) check(category domain.Category, amount decimal.Decimal) error {
	if amount.Sub(amount.Truncate(0)).Equal(failingCents) {
		return observe(InternalName, category, domain.NewError(InternalName, category, "amount rejected by provider", nil))
	}
	return observe(InternalName, category, nil)
}

// InternalReference maps a request reference to the provider reference.
func InternalReference(reference string) string {
	return internalRefPrefix + reference
}

func outcomeFor(reference string) domain.Status {
	ref := strings.TrimPrefix(reference, internalRefPrefix)
	switch {
	case strings.HasPrefix(ref, failRefPrefix):
		return domain.StatusFailed
	case strings.HasPrefix(ref, pendingRefPrefix):
		return domain.StatusPending
	default:
		return domain.StatusSuccess
	}
}

func initialStatus(reference string) domain.Status {
	if outcomeFor(reference) == domain.StatusSuccess {
		return domain.StatusSuccess
	}
	return domain.StatusPending
}

func (p *Internal) InitiateDeposit(_ context.Context, req domain.DepositRequest) (*domain.DepositResult, error) {
	if err := p.check(domain.CategoryDeposit, req.Amount); err != nil {
		return nil, err
	}
	ref := InternalReference(req.Reference)
	return &domain.DepositResult{
		ProviderReference: ref,
		Status:            initialStatus(req.Reference),
		PaymentURL:        "internal://pay/" + ref,
		Metadata:          map[string]interface{}{"provider": InternalName},
	}, nil
}

func (p *Internal) VerifyDeposit(_ context.Context, reference string) (*domain.VerifyResult, error) {
	_ = observe(InternalName, domain.CategoryDeposit, nil)
	return p.verify(reference), nil
}

func (p *Internal) InitiateWithdrawal(_ context.Context, req domain.WithdrawalRequest) (*domain.WithdrawalResult, error) {
	if err := p.check(domain.CategoryWithdrawal, req.Amount); err != nil {
		return nil, err
	}
	return &domain.WithdrawalResult{
		ProviderReference: InternalReference(req.Reference),
		Status:            initialStatus(req.Reference),
		Metadata:          map[string]interface{}{"provider": InternalName, "account": req.Account.AccountNumber},
	}, nil
}

func (p *Internal) VerifyWithdrawal(_ context.Context, reference string) (*domain.VerifyResult, error) {
	_ = observe(InternalName, domain.CategoryWithdrawal, nil)
	return p.verify(reference), nil
}

func (p *Internal) verify(reference string) *domain.VerifyResult {
	status := outcomeFor(reference)
	res := &domain.VerifyResult{Status: status, Metadata: map[string]interface{}{"provider": InternalName}}
	if status == domain.StatusFailed {
		res.Message = "declined by internal provider"
	}
	return res
}

func (p *Internal) ListBanks(_ context.Context, currency string) ([]domain.Bank, error) {
	cur := strings.ToUpper(currency)
	return []domain.Bank{
		{Name: "Internal Test Bank", Code: "000", Currency: cur},
		{Name: "Internal Savings Bank", Code: "001", Currency: cur},
	}, nil
}

func (p *Internal) VerifyAccount(_ context.Context, accountNumber, bankCode string) (string, error) {
	if len(accountNumber) != 10 {
		return "", domain.NewError(InternalName, domain.CategoryWithdrawal, "invalid account number", nil)
	}
	return fmt.Sprintf("Internal Account %s-%s", bankCode, accountNumber[6:]), nil
}

// AccountNumber derives a stable 10-digit account number from seed.
func AccountNumber(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	n := binary.BigEndian.Uint64(sum[:8]) % 9_000_000_000
	return fmt.Sprintf("%010d", n+1_000_000_000)
}

func (p *Internal) CreateCard(_ context.Context, req domain.CardRequest) (*domain.CardResult, error) {
	if err := p.check(domain.CategoryCard, req.Amount); err != nil {
		return nil, err
	}
	seed := req.Customer.ID + ":" + req.Currency + ":" + req.CardType
	digits := AccountNumber(seed) + AccountNumber(seed + ":pan")[4:]
	brand := req.Brand
	if brand == "" {
		brand = "verve"
	}
	return &domain.CardResult{
		ProviderCardID: "card_" + AccountNumber(seed),
		CardNumber:     digits,
		Expiry:         "12/30",
		CVV:            digits[len(digits)-3:],
		Brand:          brand,
		Metadata:       map[string]interface{}{"provider": InternalName},
	}, nil
}

func (p *Internal) FreezeCard(context.Context, string) error   { return nil }
func (p *Internal) UnfreezeCard(context.Context, string) error { return nil }
func (p *Internal) BlockCard(context.Context, string) error    { return nil }

func (p *Internal) SendSMS(ctx context.Context, to, body string) (string, error) {
	logger.Info(ctx, "internal sms", zap.String("to", to), zap.Int("length", len(body)))
	return "sms_" + AccountNumber(to+body), observe(InternalName, domain.CategorySMS, nil)
}

func (p *Internal) SendEmail(ctx context.Context, msg domain.EmailMessage) error {
	logger.Info(ctx, "internal email", zap.Strings("to", msg.Recipients), zap.String("subject", msg.Subject))
	return observe(InternalName, domain.CategoryEmail, nil)
}

func (p *Internal) SendPush(ctx context.Context, token, title, _ string, _ map[string]string) (string, error) {
	logger.Info(ctx, "internal push", zap.String("title", title))
	return "push_" + AccountNumber(token+title), observe(InternalName, domain.CategoryPush, nil)
}

// internalEvent is the callback body the internal provider emits.
type internalEvent struct {
	Event          string          `json:"event"`
	Kind           string          `json:"kind"`
	Reference      string          `json:"reference"`
	Status         string          `json:"status"`
	AccountNumber  string          `json:"account_number"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ProviderCardID string          `json:"provider_card_id"`
	Merchant       string          `json:"merchant"`
	SenderName     string          `json:"sender_name"`
}

func (p *Internal) VerifySignature(header http.Header, body []byte) error {
	return verifyHMAC(InternalName, "sha256", p.webhookSecret, header.Get(InternalSignature), body)
}

func (p *Internal) ParseWebhook(body []byte) (*domain.WebhookEvent, error) {
	var ev internalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domain.NewError(InternalName, "webhook", "malformed payload", err)
	}
	kind := domain.WebhookKind(ev.Kind)
	switch kind {
	case domain.WebhookDeposit, domain.WebhookWithdrawal, domain.WebhookAccountCredit, domain.WebhookCardSpend:
	default:
		kind = domain.WebhookIgnored
	}
	status := domain.Status(ev.Status)
	if status == "" {
		status = domain.StatusSuccess
	}
	return &domain.WebhookEvent{
		Provider:       InternalName,
		Kind:           kind,
		Event:          ev.Event,
		Reference:      ev.Reference,
		Status:         status,
		AccountNumber:  ev.AccountNumber,
		Amount:         ev.Amount,
		Currency:       strings.ToUpper(ev.Currency),
		ProviderCardID: ev.ProviderCardID,
		Merchant:       ev.Merchant,
		SenderName:     ev.SenderName,
	}, nil
}
