package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/interfaces/http/handlers"
)

func passThrough(c *gin.Context) { c.Next() }

func abortWith(status int) gin.HandlerFunc {
	return func(c *gin.Context) { c.AbortWithStatus(status) }
}

func emptyRouteDeps() routeDeps {
	return routeDeps{
		authHandler:         &handlers.AuthHandler{},
		biometricHandler:    &handlers.BiometricHandler{},
		walletHandler:       &handlers.WalletHandler{},
		transactionHandler:  &handlers.TransactionHandler{},
		cardHandler:         &handlers.CardHandler{},
		paymentHandler:      &handlers.PaymentHandler{},
		disputeHandler:      &handlers.DisputeHandler{},
		notificationHandler: &handlers.NotificationHandler{},
		kycHandler:          &handlers.KYCHandler{},
		investmentHandler:   &handlers.InvestmentHandler{},
		loanHandler:         &handlers.LoanHandler{},
		adminHandler:        &handlers.AdminHandler{},
		webhookHandler:      &handlers.WebhookHandler{},
		realtimeHandler:     &handlers.RealtimeHandler{},
		authMiddleware:      passThrough,
		socketAuth:          passThrough,
		authRateLimit:       passThrough,
		webhookRateLimit:    passThrough,
	}
}

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerAPIV1Routes(r, emptyRouteDeps())

	routes := r.Routes()
	require.Greater(t, len(routes), 60)

	expects := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/auth/login"},
		{"POST", "/api/v1/auth/verify-otp"},
		{"POST", "/api/v1/auth/biometric/login/verify"},
		{"DELETE", "/api/v1/auth/trust-tokens/:deviceId"},
		{"POST", "/api/v1/wallets/:id/transfer"},
		{"POST", "/api/v1/wallets/:id/withdraw"},
		{"POST", "/api/v1/transactions/deposits/:reference/verify"},
		{"PATCH", "/api/v1/cards/:id"},
		{"POST", "/api/v1/payments"},
		{"GET", "/api/v1/pay/links/:slug"},
		{"POST", "/api/v1/disputes/:id/evidence"},
		{"GET", "/api/v1/notifications/unread-count"},
		{"GET", "/api/v1/ws/notifications"},
		{"POST", "/api/v1/webhooks/:provider"},
		{"PATCH", "/api/v1/admin/disputes/:id"},
		{"POST", "/api/v1/admin/transactions/:id/reverse"},
		{"POST", "/api/v1/admin/loans"},
	}

	registered := map[string]bool{}
	for _, route := range routes {
		registered[route.Method+" "+route.Path] = true
	}
	for _, exp := range expects {
		assert.True(t, registered[exp.method+" "+exp.path], "%s %s not registered", exp.method, exp.path)
	}
}

func TestRegisterAPIV1Routes_MiddlewareGuards(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := emptyRouteDeps()
	deps.authMiddleware = abortWith(http.StatusUnauthorized)
	deps.socketAuth = abortWith(http.StatusUnauthorized)
	deps.authRateLimit = abortWith(http.StatusTooManyRequests)
	deps.webhookRateLimit = abortWith(http.StatusTooManyRequests)

	r := gin.New()
	registerAPIV1Routes(r, deps)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/v1/auth/login", http.StatusTooManyRequests},
		{http.MethodPost, "/api/v1/webhooks/paystack", http.StatusTooManyRequests},
		{http.MethodGet, "/api/v1/auth/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/wallets", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/ws/notifications", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/admin/kyc/x/approve", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/admin/loans", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}
