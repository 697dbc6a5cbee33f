package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a supported ISO-like currency code with its precision.
type Currency struct {
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	DecimalPlaces   int32           `json:"decimalPlaces"`
	IsCrypto        bool            `json:"isCrypto"`
	ExchangeRateUSD decimal.Decimal `json:"exchangeRateUsd"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Round rounds an amount to the currency precision.
func (c *Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.DecimalPlaces)
}
