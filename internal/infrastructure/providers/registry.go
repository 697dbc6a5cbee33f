package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"walletcore.backend/internal/config"
	domainerrors "walletcore.backend/internal/domain/errors"
	domain "walletcore.backend/internal/domain/providers"
	"walletcore.backend/pkg/logger"
)

// Registry resolves providers by currency and by name. When UseInternal is
// set every lookup returns the internal provider; in test mode an unrouted
// currency falls back to it.
type Registry struct {
	mu          sync.RWMutex
	routing     config.RoutingTable
	useInternal bool
	fallback    bool
	internal    *Internal
	deposit     map[string]domain.DepositProvider
	withdrawal  map[string]domain.WithdrawalProvider
	card        map[string]domain.CardProvider
	webhooks    map[string]domain.WebhookHandler
	sms         domain.SMSProvider
	email       domain.EmailProvider
	push        domain.PushProvider
}

// NewRegistry creates a registry with the internal provider registered for every category.
func NewRegistry(cfg config.ProvidersConfig, internal *Internal) *Registry {
	routing := cfg.Routing
	if routing == nil {
		routing = config.DefaultRouting()
	}
	r := &Registry{
		routing:     routing,
		useInternal: cfg.UseInternal,
		fallback:    cfg.TestMode,
		internal:    internal,
		deposit:     map[string]domain.DepositProvider{},
		withdrawal:  map[string]domain.WithdrawalProvider{},
		card:        map[string]domain.CardProvider{},
		webhooks:    map[string]domain.WebhookHandler{},
		sms:         internal,
		email:       internal,
		push:        internal,
	}
	r.RegisterDeposit(internal)
	r.RegisterWithdrawal(internal)
	r.RegisterCard(internal)
	r.RegisterWebhook(internal)
	return r
}

// Build wires every adapter whose credentials are configured.
func Build(cfg *config.Config) *Registry {
	pc := cfg.Providers
	internalSecret := firstNonEmpty(pc.Credential(InternalName).WebhookSecret, cfg.Security.SecretKey)
	r := NewRegistry(pc, NewInternal(internalSecret))

	if c := pc.Credential(PaystackName); c.SecretKey != "" {
		p := NewPaystack(c.SecretKey, c.WebhookSecret, c.BaseURL, pc.Timeout)
		r.RegisterDeposit(p)
		r.RegisterWithdrawal(p)
		r.RegisterWebhook(p)
	}
	if c := pc.Credential(FlutterwaveName); c.SecretKey != "" {
		p := NewFlutterwave(c.SecretKey, c.WebhookSecret, c.BaseURL, pc.Timeout)
		r.RegisterDeposit(p)
		r.RegisterWithdrawal(p)
		r.RegisterWebhook(p)
	}
	if c := pc.Credential(SudoName); c.SecretKey != "" {
		p := NewSudo(c.SecretKey, c.WebhookSecret, c.BaseURL, pc.TestMode, pc.Timeout)
		r.RegisterCard(p)
		r.RegisterWebhook(p)
	}
	if pc.UseInternal {
		return r
	}
	if c := pc.Credential(TwilioName); c.SecretKey != "" && c.AccountID != "" {
		r.SetSMS(NewTwilio(c.AccountID, c.SecretKey, c.Sender, c.BaseURL, pc.Timeout))
	}
	if c := pc.Credential(FCMName); c.SecretKey != "" {
		r.SetPush(NewFCM(c.SecretKey, c.BaseURL, pc.Timeout))
	}
	if n := cfg.Notifications; n.SMTPHost != "" {
		r.SetEmail(NewSMTP(n.SMTPHost, n.SMTPPort, n.SMTPUsername, n.SMTPPassword, n.DefaultFromEmail))
	}
	return r
}

func (r *Registry) RegisterDeposit(p domain.DepositProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deposit[p.Name()] = p
}

func (r *Registry) RegisterWithdrawal(p domain.WithdrawalProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdrawal[p.Name()] = p
}

func (r *Registry) RegisterCard(p domain.CardProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.card[p.Name()] = p
}

func (r *Registry) RegisterWebhook(h domain.WebhookHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhooks[h.Name()] = h
}

func (r *Registry) SetSMS(p domain.SMSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms = p
}

func (r *Registry) SetEmail(p domain.EmailProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.email = p
}

func (r *Registry) SetPush(p domain.PushProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.push = p
}

// route picks the provider name for currency and category.
func (r *Registry) route(currency, category string, registered func(string) bool) (string, error) {
	if r.useInternal {
		return InternalName, nil
	}
	name, ok := r.routing.Lookup(currency, category)
	if ok && registered(name) {
		return name, nil
	}
	if r.fallback {
		if ok {
			logger.Warn(context.Background(), "routed provider not configured, using internal",
				zap.String("provider", name), zap.String("currency", currency), zap.String("category", category))
		}
		return InternalName, nil
	}
	if ok {
		return "", fmt.Errorf("%w: %s provider %q not configured", domainerrors.ErrProviderFailure, category, name)
	}
	return "", fmt.Errorf("%w: no %s provider for %s", domainerrors.ErrUnsupportedCurrency, category, strings.ToUpper(currency))
}

func (r *Registry) Deposit(currency string) (domain.DepositProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, err := r.route(currency, config.CategoryDeposit, func(n string) bool { _, ok := r.deposit[n]; return ok })
	if err != nil {
		return nil, err
	}
	return r.deposit[name], nil
}

func (r *Registry) Withdrawal(currency string) (domain.WithdrawalProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, err := r.route(currency, config.CategoryWithdrawal, func(n string) bool { _, ok := r.withdrawal[n]; return ok })
	if err != nil {
		return nil, err
	}
	return r.withdrawal[name], nil
}

func (r *Registry) Card(currency string) (domain.CardProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, err := r.route(currency, config.CategoryCard, func(n string) bool { _, ok := r.card[n]; return ok })
	if err != nil {
		return nil, err
	}
	return r.card[name], nil
}

// DepositByName returns the provider that owns an existing deposit.
func (r *Registry) DepositByName(name string) (domain.DepositProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.deposit[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown deposit provider %q", domainerrors.ErrProviderFailure, name)
}

func (r *Registry) WithdrawalByName(name string) (domain.WithdrawalProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.withdrawal[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown withdrawal provider %q", domainerrors.ErrProviderFailure, name)
}

func (r *Registry) CardByName(name string) (domain.CardProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.card[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown card provider %q", domainerrors.ErrProviderFailure, name)
}

// Webhook returns the callback handler for a provider path segment.
func (r *Registry) Webhook(name string) (domain.WebhookHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.webhooks[strings.ToLower(name)]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: unknown webhook provider %q", domainerrors.ErrNotFound, name)
}

func (r *Registry) SMS() domain.SMSProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sms
}

func (r *Registry) Email() domain.EmailProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.email
}

func (r *Registry) Push() domain.PushProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.push
}
