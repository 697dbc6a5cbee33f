package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "walletcore.backend/internal/domain/providers"
)

func TestFlutterwave_DepositFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer flw_sk", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/payments":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "75.50", body["amount"])
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]string{"link": "https://flw/pay"}})
		case "/transactions/verify_by_reference":
			assert.Equal(t, "TXN-2", r.URL.Query().Get("tx_ref"))
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]interface{}{"id": 77, "status": "successful", "amount": 75.5}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewFlutterwave("flw_sk", "hash", srv.URL, time.Second)
	res, err := p.InitiateDeposit(context.Background(), domain.DepositRequest{Amount: decimal.RequireFromString("75.5"), Currency: "USD", Reference: "TXN-2"})
	require.NoError(t, err)
	assert.Equal(t, "https://flw/pay", res.PaymentURL)

	v, err := p.VerifyDeposit(context.Background(), "TXN-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, v.Status)
	assert.True(t, v.Amount.Equal(decimal.RequireFromString("75.5")))
}

func TestFlutterwave_WithdrawalAndBanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/transfers" && r.Method == http.MethodPost:
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]interface{}{"id": 9, "status": "NEW"}})
		case r.URL.Path == "/transfers":
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": []map[string]interface{}{{"id": 9, "status": "SUCCESSFUL", "amount": 100}}})
		case r.URL.Path == "/banks/KE":
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": []map[string]string{{"code": "01", "name": "KCB"}}})
		case r.URL.Path == "/accounts/resolve":
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": map[string]string{"account_name": "JANE"}})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "error", "message": "nope"})
		}
	}))
	defer srv.Close()

	p := NewFlutterwave("flw_sk", "hash", srv.URL, time.Second)
	ctx := context.Background()

	res, err := p.InitiateWithdrawal(ctx, domain.WithdrawalRequest{Amount: decimal.NewFromInt(100), Currency: "KES", Reference: "W-9"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, res.Status)

	v, err := p.VerifyWithdrawal(ctx, "W-9")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, v.Status)

	banks, err := p.ListBanks(ctx, "KES")
	require.NoError(t, err)
	assert.Equal(t, "KCB", banks[0].Name)
	_, err = p.ListBanks(ctx, "XYZ")
	assert.Error(t, err)

	name, err := p.VerifyAccount(ctx, "0011", "01")
	require.NoError(t, err)
	assert.Equal(t, "JANE", name)
}

func TestFlutterwave_Webhook(t *testing.T) {
	p := NewFlutterwave("sk", "my-hash", "", time.Second)

	h := http.Header{}
	h.Set(FlutterwaveSignature, "other")
	assert.Error(t, p.VerifySignature(h, nil))
	h.Set(FlutterwaveSignature, "my-hash")
	require.NoError(t, p.VerifySignature(h, nil))

	ev, err := p.ParseWebhook([]byte(`{"event":"charge.completed","data":{"tx_ref":"TXN-5","status":"successful","amount":120.25,"currency":"usd"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDeposit, ev.Kind)
	assert.Equal(t, "TXN-5", ev.Reference)
	assert.Equal(t, "USD", ev.Currency)

	ev, err = p.ParseWebhook([]byte(`{"event":"transfer.completed","data":{"reference":"W-1","status":"FAILED"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookWithdrawal, ev.Kind)
	assert.Equal(t, domain.StatusFailed, ev.Status)

	assert.Error(t, NewFlutterwave("sk", "", "", time.Second).VerifySignature(h, nil))
}
