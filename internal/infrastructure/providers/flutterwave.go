package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/crypto"
)

const (
	FlutterwaveName      = "flutterwave"
	FlutterwaveSignature = "verif-hash"
	flutterwaveBaseURL   = "https://api.flutterwave.com/v3"
)

var flutterwaveCountries = map[string]string{
	"NGN": "NG",
	"GHS": "GH",
	"KES": "KE",
	"UGX": "UG",
	"ZAR": "ZA",
	"USD": "US",
}

// Flutterwave adapts the Flutterwave v3 API. Amounts travel in major units.
type Flutterwave struct {
	client     *restClient
	secretHash string
}

func NewFlutterwave(secretKey, secretHash, baseURL string, timeout time.Duration) *Flutterwave {
	return &Flutterwave{
		client:     newRESTClient(FlutterwaveName, firstNonEmpty(baseURL, flutterwaveBaseURL), timeout, bearer(secretKey)),
		secretHash: secretHash,
	}
}

func (p *Flutterwave) Name() string { return FlutterwaveName }

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Flutterwave) call(ctx context.Context, category domain.Category, method, path string, body, out interface{}) error {
	var env flutterwaveEnvelope
	if err := p.client.doJSON(ctx, category, method, path, body, &env); err != nil {
		return err
	}
	if env.Status != "success" {
		return domain.NewError(FlutterwaveName, category, firstNonEmpty(env.Message, "request rejected"), nil)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.NewError(FlutterwaveName, category, "decode data", err)
		}
	}
	return nil
}

func flutterwaveStatus(s string) domain.Status {
	switch strings.ToLower(s) {
	case "successful", "success":
		return domain.StatusSuccess
	case "failed", "cancelled":
		return domain.StatusFailed
	default:
		return domain.StatusPending
	}
}

func (p *Flutterwave) InitiateDeposit(ctx context.Context, req domain.DepositRequest) (*domain.DepositResult, error) {
	var data struct {
		Link string `json:"link"`
	}
	body := map[string]interface{}{
		"tx_ref":       req.Reference,
		"amount":       req.Amount.StringFixed(2),
		"currency":     req.Currency,
		"redirect_url": req.CallbackURL,
		"customer": map[string]string{
			"email":       req.Customer.Email,
			"phonenumber": req.Customer.Phone,
			"name":        strings.TrimSpace(req.Customer.FirstName + " " + req.Customer.LastName),
		},
	}
	if req.Method != "" {
		body["payment_options"] = req.Method
	}
	if err := p.call(ctx, domain.CategoryDeposit, http.MethodPost, "/payments", body, &data); err != nil {
		return nil, err
	}
	return &domain.DepositResult{
		ProviderReference: req.Reference,
		Status:            domain.StatusPending,
		PaymentURL:        data.Link,
	}, nil
}

type flutterwaveTxn struct {
	ID            int64           `json:"id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	ProcessorResp string          `json:"processor_response"`
	CompleteMsg   string          `json:"complete_message"`
}

func (p *Flutterwave) VerifyDeposit(ctx context.Context, reference string) (*domain.VerifyResult, error) {
	var data flutterwaveTxn
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	if err := p.call(ctx, domain.CategoryDeposit, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &domain.VerifyResult{
		Status:   flutterwaveStatus(data.Status),
		Amount:   data.Amount,
		Message:  data.ProcessorResp,
		Metadata: map[string]interface{}{"flw_id": data.ID},
	}, nil
}

func (p *Flutterwave) InitiateWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (*domain.WithdrawalResult, error) {
	var data flutterwaveTxn
	err := p.call(ctx, domain.CategoryWithdrawal, http.MethodPost, "/transfers", map[string]interface{}{
		"account_bank":   req.Account.BankCode,
		"account_number": req.Account.AccountNumber,
		"amount":         req.Amount.StringFixed(2),
		"currency":       req.Currency,
		"reference":      req.Reference,
		"narration":      req.Narration,
	}, &data)
	if err != nil {
		return nil, err
	}
	return &domain.WithdrawalResult{
		ProviderReference: req.Reference,
		Status:            flutterwaveStatus(data.Status),
		Metadata:          map[string]interface{}{"flw_id": data.ID},
	}, nil
}

func (p *Flutterwave) VerifyWithdrawal(ctx context.Context, reference string) (*domain.VerifyResult, error) {
	var data []flutterwaveTxn
	path := "/transfers?reference=" + url.QueryEscape(reference)
	if err := p.call(ctx, domain.CategoryWithdrawal, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &domain.VerifyResult{Status: domain.StatusPending, Message: "transfer not found"}, nil
	}
	return &domain.VerifyResult{
		Status:  flutterwaveStatus(data[0].Status),
		Amount:  data[0].Amount,
		Message: data[0].CompleteMsg,
	}, nil
}

func (p *Flutterwave) ListBanks(ctx context.Context, currency string) ([]domain.Bank, error) {
	cur := strings.ToUpper(currency)
	country, ok := flutterwaveCountries[cur]
	if !ok {
		return nil, domain.NewError(FlutterwaveName, domain.CategoryWithdrawal, "unsupported currency "+cur, nil)
	}
	var data []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := p.call(ctx, domain.CategoryWithdrawal, http.MethodGet, "/banks/"+country, nil, &data); err != nil {
		return nil, err
	}
	banks := make([]domain.Bank, 0, len(data))
	for _, b := range data {
		banks = append(banks, domain.Bank{Name: b.Name, Code: b.Code, Currency: cur})
	}
	return banks, nil
}

func (p *Flutterwave) VerifyAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	var data struct {
		AccountName string `json:"account_name"`
	}
	err := p.call(ctx, domain.CategoryWithdrawal, http.MethodPost, "/accounts/resolve", map[string]string{
		"account_number": accountNumber,
		"account_bank":   bankCode,
	}, &data)
	if err != nil {
		return "", err
	}
	return data.AccountName, nil
}

// VerifySignature compares the shared secret hash Flutterwave echoes back.
func (p *Flutterwave) VerifySignature(header http.Header, _ []byte) error {
	if p.secretHash == "" {
		return domain.NewError(FlutterwaveName, "webhook", "webhook secret not configured", nil)
	}
	if !crypto.ConstantTimeEqual(header.Get(FlutterwaveSignature), p.secretHash) {
		return domain.NewError(FlutterwaveName, "webhook", "invalid signature", nil)
	}
	return nil
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef         string          `json:"tx_ref"`
		Reference     string          `json:"reference"`
		Status        string          `json:"status"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		AccountNumber string          `json:"account_number"`
		Customer      struct {
			Name string `json:"name"`
		} `json:"customer"`
	} `json:"data"`
}

func (p *Flutterwave) ParseWebhook(body []byte) (*domain.WebhookEvent, error) {
	var ev flutterwaveEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domain.NewError(FlutterwaveName, "webhook", "malformed payload", err)
	}
	out := &domain.WebhookEvent{
		Provider: FlutterwaveName,
		Event:    ev.Event,
		Status:   flutterwaveStatus(ev.Data.Status),
		Amount:   ev.Data.Amount,
		Currency: strings.ToUpper(ev.Data.Currency),
		Kind:     domain.WebhookIgnored,
	}
	switch ev.Event {
	case "charge.completed":
		out.Kind = domain.WebhookDeposit
		out.Reference = ev.Data.TxRef
		if ev.Data.AccountNumber != "" {
			out.Kind = domain.WebhookAccountCredit
			out.AccountNumber = ev.Data.AccountNumber
			out.SenderName = ev.Data.Customer.Name
			out.Reference = firstNonEmpty(ev.Data.TxRef, ev.Data.Reference)
		}
	case "transfer.completed":
		out.Kind = domain.WebhookWithdrawal
		out.Reference = ev.Data.Reference
	}
	if out.Kind != domain.WebhookIgnored && out.Reference == "" && out.AccountNumber == "" {
		return nil, domain.NewError(FlutterwaveName, "webhook", ev.Event+" without reference", nil)
	}
	return out, nil
}
