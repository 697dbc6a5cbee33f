package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "walletcore.backend/internal/domain/providers"
)

func TestInternal_DepositOutcomes(t *testing.T) {
	p := NewInternal("secret")
	ctx := context.Background()

	res, err := p.InitiateDeposit(ctx, domain.DepositRequest{Amount: decimal.NewFromInt(500), Currency: "NGN", Reference: "TXN-1"})
	require.NoError(t, err)
	assert.Equal(t, "INT-TXN-1", res.ProviderReference)
	assert.Equal(t, domain.StatusSuccess, res.Status)

	v, err := p.VerifyDeposit(ctx, res.ProviderReference)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, v.Status)

	v, _ = p.VerifyDeposit(ctx, InternalReference("FAIL-abc"))
	assert.Equal(t, domain.StatusFailed, v.Status)
	assert.NotEmpty(t, v.Message)

	v, _ = p.VerifyDeposit(ctx, "PENDING-abc")
	assert.Equal(t, domain.StatusPending, v.Status)
}

func TestInternal_AmountEndingIn13Fails(t *testing.T) {
	p := NewInternal("secret")

	_, err := p.InitiateWithdrawal(context.Background(), domain.WithdrawalRequest{Amount: decimal.RequireFromString("1000.13"), Reference: "W-1"})
	require.Error(t, err)
	var perr *domain.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, InternalName, perr.Provider)
	assert.Equal(t, domain.CategoryWithdrawal, perr.Category)

	res, err := p.InitiateWithdrawal(context.Background(), domain.WithdrawalRequest{Amount: decimal.RequireFromString("1000.31"), Reference: "W-2"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)

	res, err = p.InitiateWithdrawal(context.Background(), domain.WithdrawalRequest{Amount: decimal.NewFromInt(10), Reference: "FAIL-W-3"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, res.Status, "declines surface on verify")
}

func TestAccountNumber_Deterministic(t *testing.T) {
	a := AccountNumber("user-1:NGN")
	assert.Len(t, a, 10)
	assert.Equal(t, a, AccountNumber("user-1:NGN"))
	assert.NotEqual(t, a, AccountNumber("user-2:NGN"))
	assert.NotEqual(t, byte('0'), a[0])
}

func TestInternal_CardAndAccounts(t *testing.T) {
	p := NewInternal("secret")
	ctx := context.Background()

	card, err := p.CreateCard(ctx, domain.CardRequest{Customer: domain.Customer{ID: "u1"}, Currency: "NGN", CardType: "virtual"})
	require.NoError(t, err)
	assert.Len(t, card.CardNumber, 16)
	assert.Len(t, card.CVV, 3)
	assert.Equal(t, "verve", card.Brand)
	require.NoError(t, p.FreezeCard(ctx, card.ProviderCardID))

	name, err := p.VerifyAccount(ctx, "0123456789", "000")
	require.NoError(t, err)
	assert.Equal(t, "Internal Account 000-6789", name)
	_, err = p.VerifyAccount(ctx, "123", "000")
	assert.Error(t, err)

	banks, err := p.ListBanks(ctx, "ngn")
	require.NoError(t, err)
	assert.Equal(t, "NGN", banks[0].Currency)
}

func TestInternal_Webhook(t *testing.T) {
	p := NewInternal("whsec")
	body := []byte(`{"event":"account.credit","kind":"account_credit","reference":"EXT-1","account_number":"1234567890","amount":"2500.00","currency":"ngn","sender_name":"Ada"}`)

	h := http.Header{}
	assert.Error(t, p.VerifySignature(h, body))
	h.Set(InternalSignature, SignHMAC("sha256", "wrong", body))
	assert.Error(t, p.VerifySignature(h, body))
	h.Set(InternalSignature, SignHMAC("sha256", "whsec", body))
	require.NoError(t, p.VerifySignature(h, body))

	ev, err := p.ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookAccountCredit, ev.Kind)
	assert.Equal(t, "NGN", ev.Currency)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, domain.StatusSuccess, ev.Status)

	ev, err = p.ParseWebhook([]byte(`{"kind":"something"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookIgnored, ev.Kind)

	_, err = p.ParseWebhook([]byte(`{`))
	assert.Error(t, err)
}

func TestInternal_WebhookWithoutSecret(t *testing.T) {
	p := NewInternal("")
	h := http.Header{}
	h.Set(InternalSignature, "abc")
	assert.Error(t, p.VerifySignature(h, []byte("{}")))
}
