package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Currency{},
		&User{},
		&TrustToken{},
		&BiometricCredential{},
		&KYCRecord{},
		&Wallet{},
		&Hold{},
		&Transaction{},
		&TransactionFee{},
		&TransactionLog{},
		&Dispute{},
		&AuditLog{},
		&Notification{},
		&InvestmentProduct{},
		&Investment{},
		&InvestmentReturn{},
		&Portfolio{},
		&Loan{},
		&LoanScheduleEntry{},
		&AutoRepayment{},
		&Card{},
		&PaymentLink{},
		&Invoice{},
	}
}
