package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "walletcore.backend/internal/domain/providers"
)

const (
	SudoName         = "sudo"
	SudoSignature    = "x-sudo-signature"
	sudoLiveURL      = "https://api.sudo.africa"
	sudoSandboxURL   = "https://api.sandbox.sudo.cards"
	sudoCardActive   = "active"
	sudoCardInactive = "inactive"
	sudoCardCanceled = "canceled"
)

// Sudo adapts the Sudo card-issuing API.
type Sudo struct {
	client        *restClient
	webhookSecret string
}

func NewSudo(secretKey, webhookSecret, baseURL string, testMode bool, timeout time.Duration) *Sudo {
	def := sudoLiveURL
	if testMode {
		def = sudoSandboxURL
	}
	return &Sudo{
		client:        newRESTClient(SudoName, firstNonEmpty(baseURL, def), timeout, bearer(secretKey)),
		webhookSecret: webhookSecret,
	}
}

func (p *Sudo) Name() string { return SudoName }

type sudoEnvelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func (p *Sudo) call(ctx context.Context, method, path string, body, out interface{}) error {
	var env sudoEnvelope
	if err := p.client.doJSON(ctx, domain.CategoryCard, method, path, body, &env); err != nil {
		return err
	}
	if env.StatusCode != 0 && (env.StatusCode < 200 || env.StatusCode >= 300) {
		return domain.NewError(SudoName, domain.CategoryCard, firstNonEmpty(env.Message, "request rejected"), nil)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.NewError(SudoName, domain.CategoryCard, "decode data", err)
		}
	}
	return nil
}

func (p *Sudo) CreateCard(ctx context.Context, req domain.CardRequest) (*domain.CardResult, error) {
	var customer struct {
		ID string `json:"_id"`
	}
	err := p.call(ctx, http.MethodPost, "/customers", map[string]interface{}{
		"type":         "individual",
		"name":         strings.TrimSpace(req.Customer.FirstName + " " + req.Customer.LastName),
		"emailAddress": req.Customer.Email,
		"phoneNumber":  req.Customer.Phone,
		"status":       sudoCardActive,
		"individual": map[string]string{
			"firstName": req.Customer.FirstName,
			"lastName":  req.Customer.LastName,
		},
	}, &customer)
	if err != nil {
		return nil, err
	}

	var card struct {
		ID          string `json:"_id"`
		MaskedPan   string `json:"maskedPan"`
		Number      string `json:"number"`
		CVV2        string `json:"cvv2"`
		ExpiryMonth string `json:"expiryMonth"`
		ExpiryYear  string `json:"expiryYear"`
		Brand       string `json:"brand"`
	}
	body := map[string]interface{}{
		"customerId": customer.ID,
		"type":       strings.ToLower(firstNonEmpty(req.CardType, "virtual")),
		"currency":   strings.ToUpper(req.Currency),
		"status":     sudoCardActive,
		"brand":      firstNonEmpty(req.Brand, "Verve"),
	}
	if req.Amount.IsPositive() {
		body["amount"] = req.Amount.StringFixed(2)
	}
	if err := p.call(ctx, http.MethodPost, "/cards", body, &card); err != nil {
		return nil, err
	}
	year := card.ExpiryYear
	if len(year) == 4 {
		year = year[2:]
	}
	return &domain.CardResult{
		ProviderCardID: card.ID,
		CardNumber:     firstNonEmpty(card.Number, card.MaskedPan),
		Expiry:         fmt.Sprintf("%s/%s", card.ExpiryMonth, year),
		CVV:            card.CVV2,
		Brand:          strings.ToLower(card.Brand),
		Metadata:       map[string]interface{}{"customer_id": customer.ID},
	}, nil
}

func (p *Sudo) setStatus(ctx context.Context, providerCardID, status string) error {
	return p.call(ctx, http.MethodPut, "/cards/"+url.PathEscape(providerCardID), map[string]string{"status": status}, nil)
}

func (p *Sudo) FreezeCard(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, sudoCardInactive)
}

func (p *Sudo) UnfreezeCard(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, sudoCardActive)
}

func (p *Sudo) BlockCard(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, sudoCardCanceled)
}

func (p *Sudo) VerifySignature(header http.Header, body []byte) error {
	return verifyHMAC(SudoName, "sha256", p.webhookSecret, header.Get(SudoSignature), body)
}

type sudoEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string          `json:"_id"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
			Card     string          `json:"card"`
			Status   string          `json:"status"`
			Merchant struct {
				Name string `json:"name"`
			} `json:"merchant"`
		} `json:"object"`
	} `json:"data"`
}

func (p *Sudo) ParseWebhook(body []byte) (*domain.WebhookEvent, error) {
	var ev sudoEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domain.NewError(SudoName, "webhook", "malformed payload", err)
	}
	obj := ev.Data.Object
	out := &domain.WebhookEvent{
		Provider:       SudoName,
		Event:          ev.Type,
		Kind:           domain.WebhookIgnored,
		Reference:      obj.ID,
		Amount:         obj.Amount.Abs(),
		Currency:       strings.ToUpper(obj.Currency),
		ProviderCardID: obj.Card,
		Merchant:       obj.Merchant.Name,
		Status:         domain.StatusSuccess,
	}
	switch ev.Type {
	case "transaction.created", "authorization.request":
		out.Kind = domain.WebhookCardSpend
		if strings.EqualFold(obj.Status, "declined") || strings.EqualFold(obj.Status, "failed") {
			out.Status = domain.StatusFailed
		}
		if obj.Card == "" || obj.ID == "" {
			return nil, domain.NewError(SudoName, "webhook", ev.Type+" without card reference", nil)
		}
	}
	return out, nil
}
