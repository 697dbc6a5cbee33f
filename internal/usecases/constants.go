package usecases

import "time"

// OTP purposes
const (
	OTPPurposeLogin         = "login"
	OTPPurposeActivation    = "activation"
	OTPPurposePasswordReset = "password_reset"
	OTPPurposeTransaction   = "transaction"
	OTPPurposePINReset      = "pin_reset"
)

// ValidOTPPurpose reports whether purpose is one of the OTP purposes.
func ValidOTPPurpose(purpose string) bool {
	switch purpose {
	case OTPPurposeLogin, OTPPurposeActivation, OTPPurposePasswordReset,
		OTPPurposeTransaction, OTPPurposePINReset:
		return true
	}
	return false
}

// Transaction reference prefixes
const (
	refPrefixTransfer   = "TRF"
	refPrefixDeposit    = "DEP"
	refPrefixWithdrawal = "WDR"
	refPrefixCard       = "CRD"
	refPrefixRefund     = "RFD"
	refPrefixReversal   = "REV"
	refPrefixInvestment = "INV"
	refPrefixLoan       = "LON"
	refPrefixPayment    = "PAY"
	refPrefixDispute    = "DSP"
	refPrefixKYC        = "KYC"
	refPrefixBill       = "BIL"
)

// Payment link slugs are hex, two characters per random byte.
const slugBytes = 6

// Queue task types
const (
	TaskDeliverNotification = "notification.deliver"
)

// Account numbers
const (
	accountNumberDigits   = 10
	accountNumberAttempts = 5
)

// Wallet PIN abuse limits per client IP
const (
	DefaultPINMaxFailures = 5
	DefaultPINWindow      = 15 * time.Minute
)

// Default trust-token lifetime
const DefaultTrustTokenTTL = 90 * 24 * time.Hour

const systemActor = "system"
