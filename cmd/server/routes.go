package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/handlers"
	"walletcore.backend/internal/interfaces/http/middleware"
	"walletcore.backend/pkg/metrics"
)

type routeDeps struct {
	authHandler         *handlers.AuthHandler
	biometricHandler    *handlers.BiometricHandler
	walletHandler       *handlers.WalletHandler
	transactionHandler  *handlers.TransactionHandler
	cardHandler         *handlers.CardHandler
	paymentHandler      *handlers.PaymentHandler
	disputeHandler      *handlers.DisputeHandler
	notificationHandler *handlers.NotificationHandler
	kycHandler          *handlers.KYCHandler
	investmentHandler   *handlers.InvestmentHandler
	loanHandler         *handlers.LoanHandler
	adminHandler        *handlers.AdminHandler
	webhookHandler      *handlers.WebhookHandler
	realtimeHandler     *handlers.RealtimeHandler
	authMiddleware      gin.HandlerFunc
	socketAuth          gin.HandlerFunc
	authRateLimit       gin.HandlerFunc
	webhookRateLimit    gin.HandlerFunc
}

// applyCORSMiddleware echoes allowed origins and answers preflights.
func applyCORSMiddleware(r *gin.Engine, allowedOrigins []string) {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[strings.ToLower(o)] = true
		}
	}

	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[strings.ToLower(origin)]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+middleware.IdempotencyHeader+", "+middleware.RequestIDHeader)
			h.Set("Access-Control-Expose-Headers", middleware.RequestIDHeader+", "+middleware.IdempotencyReplayHeader+", Retry-After")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

// registerHealthRoute mounts the probes and the prometheus endpoint.
func registerHealthRoute(r *gin.Engine, health *handlers.HealthHandler) {
	r.GET("/health", health.Live)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	idempotent := middleware.IdempotencyMiddleware()

	v1 := r.Group("/api/v1")
	{
		// Auth routes (public, rate limited per IP)
		auth := v1.Group("/auth")
		auth.Use(d.authRateLimit)
		{
			auth.POST("/register", d.authHandler.Register)
			auth.POST("/login", d.authHandler.Login)
			auth.POST("/verify-otp", d.authHandler.VerifyOTP)
			auth.POST("/resend-otp", d.authHandler.ResendOTP)
			auth.POST("/refresh", d.authHandler.RefreshToken)
			auth.POST("/google", d.authHandler.GoogleLogin)
			auth.POST("/biometric/login/options", d.biometricHandler.LoginOptions)
			auth.POST("/biometric/login/verify", d.biometricHandler.LoginVerify)
		}

		// Auth routes (protected)
		me := v1.Group("/auth")
		me.Use(d.authMiddleware)
		{
			me.GET("/me", d.authHandler.GetMe)
			me.PUT("/me/notification-preferences", d.authHandler.UpdatePreferences)
			me.POST("/biometric/register/options", d.biometricHandler.RegisterOptions)
			me.POST("/biometric/register/verify", d.biometricHandler.RegisterVerify)
			me.DELETE("/trust-tokens/:deviceId", d.biometricHandler.RevokeDevice)
		}

		// Public payment pages
		pay := v1.Group("/pay")
		{
			pay.GET("/links/:slug", d.paymentHandler.GetLink)
			pay.GET("/invoices/:number", d.paymentHandler.GetInvoice)
		}

		// Provider callbacks (signature checked per provider)
		v1.POST("/webhooks/:provider", d.webhookRateLimit, d.webhookHandler.HandleProviderWebhook)

		// Realtime notifications; browsers pass the token as a query parameter
		v1.GET("/ws/notifications", d.socketAuth, d.realtimeHandler.Connect)

		protected := v1.Group("")
		protected.Use(d.authMiddleware)

		wallets := protected.Group("/wallets")
		{
			wallets.GET("", d.walletHandler.ListWallets)
			wallets.POST("", d.walletHandler.CreateWallet)
			wallets.GET("/:id", d.walletHandler.GetWallet)
			wallets.GET("/:id/transactions", d.walletHandler.ListTransactions)
			wallets.POST("/:id/transfer", idempotent, d.walletHandler.Transfer)
			wallets.POST("/:id/deposit", idempotent, d.walletHandler.Deposit)
			wallets.POST("/:id/withdraw", idempotent, d.walletHandler.Withdraw)
			wallets.POST("/:id/pin", d.walletHandler.SetPIN)
			wallets.PATCH("/:id/security", d.walletHandler.UpdateSecurity)
			wallets.POST("/:id/freeze", d.walletHandler.Freeze)
			wallets.POST("/:id/unfreeze", d.walletHandler.Unfreeze)
			wallets.POST("/:id/close", d.walletHandler.Close)
		}

		transactions := protected.Group("/transactions")
		{
			transactions.GET("", d.transactionHandler.List)
			transactions.GET("/:id", d.transactionHandler.Get)
			transactions.GET("/:id/logs", d.transactionHandler.Logs)
			transactions.POST("/deposits/:reference/verify", d.transactionHandler.VerifyDeposit)
			transactions.POST("/withdrawals/:reference/verify", d.transactionHandler.VerifyWithdrawal)
		}

		banks := protected.Group("/banks")
		{
			banks.GET("", d.transactionHandler.ListBanks)
			banks.GET("/resolve", d.transactionHandler.ResolveAccount)
		}

		cards := protected.Group("/cards")
		{
			cards.POST("", d.cardHandler.Create)
			cards.GET("", d.cardHandler.List)
			cards.GET("/:id", d.cardHandler.Get)
			cards.PATCH("/:id", d.cardHandler.Update)
			cards.POST("/:id/freeze", d.cardHandler.Freeze)
			cards.POST("/:id/unfreeze", d.cardHandler.Unfreeze)
			cards.POST("/:id/block", d.cardHandler.Block)
			cards.POST("/:id/fund", idempotent, d.cardHandler.Fund)
		}

		payments := protected.Group("/payments")
		{
			payments.POST("", idempotent, d.paymentHandler.Pay)
			payments.POST("/links", d.paymentHandler.CreateLink)
			payments.POST("/links/:id/disable", d.paymentHandler.DisableLink)
		}

		invoices := protected.Group("/invoices")
		{
			invoices.POST("", d.paymentHandler.CreateInvoice)
			invoices.POST("/:id/cancel", d.paymentHandler.CancelInvoice)
		}

		disputes := protected.Group("/disputes")
		{
			disputes.POST("", d.disputeHandler.Create)
			disputes.GET("", d.disputeHandler.List)
			disputes.GET("/:id", d.disputeHandler.Get)
			disputes.POST("/:id/evidence", d.disputeHandler.AddEvidence)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", d.notificationHandler.List)
			notifications.GET("/unread-count", d.notificationHandler.UnreadCount)
			notifications.POST("/:id/read", d.notificationHandler.MarkRead)
			notifications.POST("/read-all", d.notificationHandler.MarkAllRead)
		}

		kyc := protected.Group("/kyc")
		{
			kyc.POST("", d.kycHandler.Submit)
			kyc.GET("", d.kycHandler.Get)
		}

		investments := protected.Group("/investments")
		{
			investments.GET("/products", d.investmentHandler.ListProducts)
			investments.GET("/portfolio", d.investmentHandler.Portfolio)
			investments.POST("", idempotent, d.investmentHandler.Open)
			investments.GET("", d.investmentHandler.List)
			investments.GET("/:id", d.investmentHandler.Get)
		}

		loans := protected.Group("/loans")
		{
			loans.GET("", d.loanHandler.List)
			loans.GET("/:id", d.loanHandler.Get)
			loans.POST("/:id/repay", idempotent, d.loanHandler.Repay)
			loans.PUT("/:id/auto-repayment", d.loanHandler.ConfigureAutoRepayment)
			loans.DELETE("/:id/auto-repayment", d.loanHandler.CancelAutoRepayment)
		}

		// Back office
		admin := v1.Group("/admin")
		admin.Use(d.authMiddleware, middleware.RequireStaff())
		{
			admin.POST("/kyc/:id/approve", d.adminHandler.ApproveKYC)
			admin.POST("/kyc/:id/reject", d.adminHandler.RejectKYC)
			admin.PATCH("/disputes/:id", d.adminHandler.UpdateDisputeStatus)
			admin.GET("/transactions", d.adminHandler.ListTransactions)
			admin.POST("/transactions/:id/reverse", d.adminHandler.ReverseTransaction)
			admin.GET("/audit-logs", d.adminHandler.ListAuditLogs)
		}

		// Money-creating actions are admin only
		adminOnly := v1.Group("/admin")
		adminOnly.Use(d.authMiddleware, middleware.RequireRole(entities.UserRoleAdmin))
		{
			adminOnly.POST("/wallets/:id/block", d.adminHandler.BlockWallet)
			adminOnly.POST("/loans", d.adminHandler.CreateLoan)
			adminOnly.POST("/investments/products", d.adminHandler.CreateInvestmentProduct)
		}
	}
}
