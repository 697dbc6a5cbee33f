// Package money holds fixed-point helpers for currency amounts.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotPositive   = errors.New("amount must be greater than zero")
	ErrTooPrecise    = errors.New("amount has more decimal places than the currency allows")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidRate   = errors.New("exchange rate must be greater than zero")
)

var hundred = decimal.NewFromInt(100)

// Parse reads a decimal string.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Round rounds half away from zero to the currency's decimal places.
func Round(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Round(places)
}

// ValidatePositive rejects zero, negative and over-precise amounts.
func ValidatePositive(amount decimal.Decimal, places int32) error {
	if !amount.IsPositive() {
		return ErrNotPositive
	}
	if !amount.Equal(amount.Truncate(places)) {
		return ErrTooPrecise
	}
	return nil
}

// Percentage returns pct percent of amount rounded to places.
func Percentage(amount, pct decimal.Decimal, places int32) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(places)
}

// Convert converts amount between two currencies quoted against USD.
// fromRateUSD and toRateUSD are the USD value of one unit of each currency.
// It returns the converted amount and the applied cross rate.
func Convert(amount, fromRateUSD, toRateUSD decimal.Decimal, toPlaces int32) (decimal.Decimal, decimal.Decimal, error) {
	if !fromRateUSD.IsPositive() || !toRateUSD.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidRate
	}
	rate := fromRateUSD.DivRound(toRateUSD, 12)
	return amount.Mul(rate).Round(toPlaces), rate, nil
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Format renders amount with the currency symbol, e.g. "₦2,500.00".
func Format(amount decimal.Decimal, places int32, symbol string) string {
	s := amount.StringFixed(places)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart, frac := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			intPart, frac = s[:i], s[i:]
			break
		}
	}
	var out []byte
	for i, c := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	res := symbol + string(out) + frac
	if neg {
		return "-" + res
	}
	return res
}
