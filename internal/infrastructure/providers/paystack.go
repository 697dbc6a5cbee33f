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
	PaystackName      = "paystack"
	PaystackSignature = "x-paystack-signature"
	paystackBaseURL   = "https://api.paystack.co"
)

var hundred = decimal.NewFromInt(100)

// Paystack adapts the Paystack REST API. Amounts travel in minor units.
type Paystack struct {
	client        *restClient
	webhookSecret string
}

// NewPaystack builds the adapter. baseURL may be empty for the public API.
func NewPaystack(secretKey, webhookSecret, baseURL string, timeout time.Duration) *Paystack {
	if webhookSecret == "" {
		webhookSecret = secretKey
	}
	return &Paystack{
		client:        newRESTClient(PaystackName, firstNonEmpty(baseURL, paystackBaseURL), timeout, bearer(secretKey)),
		webhookSecret: webhookSecret,
	}
}

func (p *Paystack) Name() string { return PaystackName }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) call(ctx context.Context, category domain.Category, method, path string, body, out interface{}) error {
	var env paystackEnvelope
	if err := p.client.doJSON(ctx, category, method, path, body, &env); err != nil {
		return err
	}
	if !env.Status {
		return domain.NewError(PaystackName, category, firstNonEmpty(env.Message, "request rejected"), nil)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.NewError(PaystackName, category, "decode data", err)
		}
	}
	return nil
}

func toMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func fromMinor(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(hundred)
}

func paystackStatus(s string) domain.Status {
	switch strings.ToLower(s) {
	case "success":
		return domain.StatusSuccess
	case "failed", "abandoned", "reversed":
		return domain.StatusFailed
	default:
		return domain.StatusPending
	}
}

func (p *Paystack) InitiateDeposit(ctx context.Context, req domain.DepositRequest) (*domain.DepositResult, error) {
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	body := map[string]interface{}{
		"email":        req.Customer.Email,
		"amount":       toMinor(req.Amount),
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	}
	if req.Method != "" {
		body["channels"] = []string{req.Method}
	}
	if err := p.call(ctx, domain.CategoryDeposit, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	return &domain.DepositResult{
		ProviderReference: firstNonEmpty(data.Reference, req.Reference),
		Status:            domain.StatusPending,
		PaymentURL:        data.AuthorizationURL,
		Metadata:          map[string]interface{}{"access_code": data.AccessCode},
	}, nil
}

func (p *Paystack) VerifyDeposit(ctx context.Context, reference string) (*domain.VerifyResult, error) {
	var data struct {
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		GatewayResponse string `json:"gateway_response"`
	}
	if err := p.call(ctx, domain.CategoryDeposit, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}
	return &domain.VerifyResult{
		Status:  paystackStatus(data.Status),
		Amount:  fromMinor(data.Amount),
		Message: data.GatewayResponse,
	}, nil
}

func (p *Paystack) InitiateWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (*domain.WithdrawalResult, error) {
	var recipient struct {
		RecipientCode string `json:"recipient_code"`
	}
	err := p.call(ctx, domain.CategoryWithdrawal, http.MethodPost, "/transferrecipient", map[string]interface{}{
		"type":           "nuban",
		"name":           req.Account.AccountName,
		"account_number": req.Account.AccountNumber,
		"bank_code":      req.Account.BankCode,
		"currency":       req.Currency,
	}, &recipient)
	if err != nil {
		return nil, err
	}

	var transfer struct {
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	}
	err = p.call(ctx, domain.CategoryWithdrawal, http.MethodPost, "/transfer", map[string]interface{}{
		"source":    "balance",
		"amount":    toMinor(req.Amount),
		"recipient": recipient.RecipientCode,
		"reference": req.Reference,
		"reason":    req.Narration,
	}, &transfer)
	if err != nil {
		return nil, err
	}
	return &domain.WithdrawalResult{
		ProviderReference: req.Reference,
		Status:            paystackStatus(transfer.Status),
		Metadata:          map[string]interface{}{"transfer_code": transfer.TransferCode},
	}, nil
}

func (p *Paystack) VerifyWithdrawal(ctx context.Context, reference string) (*domain.VerifyResult, error) {
	var data struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := p.call(ctx, domain.CategoryWithdrawal, http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}
	return &domain.VerifyResult{Status: paystackStatus(data.Status), Amount: fromMinor(data.Amount), Message: data.Reason}, nil
}

func (p *Paystack) ListBanks(ctx context.Context, currency string) ([]domain.Bank, error) {
	var data []struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	path := "/bank?currency=" + url.QueryEscape(strings.ToUpper(currency))
	if err := p.call(ctx, domain.CategoryWithdrawal, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	banks := make([]domain.Bank, 0, len(data))
	for _, b := range data {
		banks = append(banks, domain.Bank{Name: b.Name, Code: b.Code, Currency: strings.ToUpper(currency)})
	}
	return banks, nil
}

func (p *Paystack) VerifyAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	var data struct {
		AccountName string `json:"account_name"`
	}
	q := url.Values{"account_number": {accountNumber}, "bank_code": {bankCode}}
	if err := p.call(ctx, domain.CategoryWithdrawal, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &data); err != nil {
		return "", err
	}
	return data.AccountName, nil
}

func (p *Paystack) VerifySignature(header http.Header, body []byte) error {
	return verifyHMAC(PaystackName, "sha512", p.webhookSecret, header.Get(PaystackSignature), body)
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference     string `json:"reference"`
		Status        string `json:"status"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		Channel       string `json:"channel"`
		Authorization struct {
			ReceiverAccountNumber string `json:"receiver_bank_account_number"`
			SenderName            string `json:"sender_name"`
		} `json:"authorization"`
	} `json:"data"`
}

func (p *Paystack) ParseWebhook(body []byte) (*domain.WebhookEvent, error) {
	var ev paystackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domain.NewError(PaystackName, "webhook", "malformed payload", err)
	}
	out := &domain.WebhookEvent{
		Provider:  PaystackName,
		Event:     ev.Event,
		Reference: ev.Data.Reference,
		Amount:    fromMinor(ev.Data.Amount),
		Currency:  strings.ToUpper(ev.Data.Currency),
		Kind:      domain.WebhookIgnored,
	}
	switch ev.Event {
	case "charge.success":
		out.Status = domain.StatusSuccess
		out.Kind = domain.WebhookDeposit
		if ev.Data.Channel == "dedicated_nuban" && ev.Data.Authorization.ReceiverAccountNumber != "" {
			out.Kind = domain.WebhookAccountCredit
			out.AccountNumber = ev.Data.Authorization.ReceiverAccountNumber
			out.SenderName = ev.Data.Authorization.SenderName
		}
	case "charge.failed":
		out.Status = domain.StatusFailed
		out.Kind = domain.WebhookDeposit
	case "transfer.success":
		out.Status = domain.StatusSuccess
		out.Kind = domain.WebhookWithdrawal
	case "transfer.failed", "transfer.reversed":
		out.Status = domain.StatusFailed
		out.Kind = domain.WebhookWithdrawal
	default:
		out.Status = paystackStatus(ev.Data.Status)
	}
	if out.Kind != domain.WebhookIgnored && out.Reference == "" && out.AccountNumber == "" {
		return nil, domain.NewError(PaystackName, "webhook", fmt.Sprintf("%s without reference", ev.Event), nil)
	}
	return out, nil
}
