package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/config"
	domainerrors "walletcore.backend/internal/domain/errors"
)

func TestRegistry_UseInternal(t *testing.T) {
	r := NewRegistry(config.ProvidersConfig{UseInternal: true, Routing: config.DefaultRouting()}, NewInternal("s"))
	r.RegisterDeposit(NewPaystack("sk", "", "", time.Second))

	p, err := r.Deposit("NGN")
	require.NoError(t, err)
	assert.Equal(t, InternalName, p.Name())
}

func TestRegistry_RoutesToRegisteredProvider(t *testing.T) {
	r := NewRegistry(config.ProvidersConfig{Routing: config.DefaultRouting()}, NewInternal("s"))
	r.RegisterDeposit(NewPaystack("sk", "", "", time.Second))
	r.RegisterWithdrawal(NewFlutterwave("sk", "h", "", time.Second))

	p, err := r.Deposit("ngn")
	require.NoError(t, err)
	assert.Equal(t, PaystackName, p.Name())

	w, err := r.Withdrawal("KES")
	require.NoError(t, err)
	assert.Equal(t, FlutterwaveName, w.Name())

	_, err = r.Withdrawal("NGN")
	assert.True(t, errors.Is(err, domainerrors.ErrProviderFailure), "paystack not registered for withdrawals")

	_, err = r.Card("EUR")
	assert.True(t, errors.Is(err, domainerrors.ErrUnsupportedCurrency))
}

func TestRegistry_TestModeFallsBack(t *testing.T) {
	r := NewRegistry(config.ProvidersConfig{TestMode: true, Routing: config.DefaultRouting()}, NewInternal("s"))

	c, err := r.Card("NGN")
	require.NoError(t, err)
	assert.Equal(t, InternalName, c.Name())

	d, err := r.Deposit("EUR")
	require.NoError(t, err)
	assert.Equal(t, InternalName, d.Name())
}

func TestRegistry_ByName(t *testing.T) {
	r := NewRegistry(config.ProvidersConfig{}, NewInternal("s"))
	r.RegisterCard(NewSudo("sk", "wh", "", true, time.Second))

	c, err := r.CardByName("SUDO")
	require.NoError(t, err)
	assert.Equal(t, SudoName, c.Name())

	_, err = r.DepositByName("paystack")
	assert.Error(t, err)

	w, err := r.WithdrawalByName("internal")
	require.NoError(t, err)
	assert.Equal(t, InternalName, w.Name())

	_, err = r.Webhook("nobody")
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestBuild_WiresConfiguredAdapters(t *testing.T) {
	cfg := &config.Config{
		Security: config.SecurityConfig{SecretKey: "root"},
		Providers: config.ProvidersConfig{
			Routing: config.DefaultRouting(),
			Timeout: time.Second,
			Credentials: map[string]config.ProviderCredentials{
				"paystack": {SecretKey: "sk"},
				"sudo":     {SecretKey: "sudo", WebhookSecret: "wh"},
				"twilio":   {SecretKey: "tok", AccountID: "AC1", Sender: "+1"},
				"fcm":      {SecretKey: "key"},
			},
		},
		Notifications: config.NotificationConfig{SMTPHost: "mail", SMTPPort: 25, DefaultFromEmail: "a@b.c"},
	}
	r := Build(cfg)

	d, err := r.Deposit("NGN")
	require.NoError(t, err)
	assert.Equal(t, PaystackName, d.Name())
	c, err := r.Card("USD")
	require.NoError(t, err)
	assert.Equal(t, SudoName, c.Name())

	for _, name := range []string{InternalName, PaystackName, SudoName} {
		_, err := r.Webhook(name)
		assert.NoError(t, err, name)
	}
	_, err = r.Webhook(FlutterwaveName)
	assert.Error(t, err)

	assert.Equal(t, TwilioName, r.SMS().Name())
	assert.Equal(t, FCMName, r.Push().Name())
	assert.Equal(t, SMTPName, r.Email().Name())

	cfg.Providers.UseInternal = true
	r = Build(cfg)
	assert.Equal(t, InternalName, r.SMS().Name())
}
