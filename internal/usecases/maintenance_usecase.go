package usecases

import (
	"context"
)

// MaintenanceUsecase groups the housekeeping passes run by the worker. Each
// method matches the periodic job signature.
type MaintenanceUsecase struct {
	ledger        *LedgerUsecase
	transactions  *TransactionUsecase
	notifications *NotificationUsecase
	payments      *PaymentUsecase
	otp           OTPCleaner
	batch         int
}

// NewMaintenanceUsecase creates a new maintenance usecase
func NewMaintenanceUsecase(
	ledger *LedgerUsecase,
	transactions *TransactionUsecase,
	notifications *NotificationUsecase,
	payments *PaymentUsecase,
	otp OTPCleaner,
	batch int,
) *MaintenanceUsecase {
	if batch <= 0 {
		batch = 100
	}
	return &MaintenanceUsecase{
		ledger:        ledger,
		transactions:  transactions,
		notifications: notifications,
		payments:      payments,
		otp:           otp,
		batch:         batch,
	}
}

// ExpireHolds releases holds past their expiry.
func (u *MaintenanceUsecase) ExpireHolds(ctx context.Context) (int, error) {
	return u.ledger.ExpireHolds(ctx, nowFunc(), u.batch)
}

// CleanupOTP drops OTP entries whose TTL was lost or whose code expired.
func (u *MaintenanceUsecase) CleanupOTP(ctx context.Context) (int, error) {
	return u.otp.CleanupExpired(ctx, int64(u.batch))
}

// PurgeNotifications applies notification retention.
func (u *MaintenanceUsecase) PurgeNotifications(ctx context.Context) (int, error) {
	n, err := u.notifications.Purge(ctx)
	return int(n), err
}

// ExpirePayments closes lapsed payment links and overdue invoices.
func (u *MaintenanceUsecase) ExpirePayments(ctx context.Context) (int, error) {
	n, err := u.payments.ExpireDue(ctx)
	return int(n), err
}

// ReconcileWithdrawals polls providers for withdrawals still processing.
func (u *MaintenanceUsecase) ReconcileWithdrawals(ctx context.Context) (int, error) {
	return u.transactions.ReconcileWithdrawals(ctx, u.batch)
}
