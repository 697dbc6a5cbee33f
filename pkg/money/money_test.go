package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidatePositive(t *testing.T) {
	assert.NoError(t, ValidatePositive(d("10.25"), 2))
	assert.ErrorIs(t, ValidatePositive(d("0"), 2), ErrNotPositive)
	assert.ErrorIs(t, ValidatePositive(d("-1"), 2), ErrNotPositive)
	assert.ErrorIs(t, ValidatePositive(d("1.001"), 2), ErrTooPrecise)
	assert.NoError(t, ValidatePositive(d("0.00000001"), 8))
	assert.ErrorIs(t, ValidatePositive(d("1.5"), 0), ErrTooPrecise)
}

func TestParse(t *testing.T) {
	v, err := Parse("2500.50")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("2500.5")))

	_, err = Parse("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPercentageAndRound(t *testing.T) {
	assert.True(t, Percentage(d("1000"), d("1.5"), 2).Equal(d("15")))
	assert.True(t, Percentage(d("333.33"), d("10"), 2).Equal(d("33.33")))
	assert.True(t, Round(d("1.005"), 2).Equal(d("1.01")))
}

func TestConvert(t *testing.T) {
	// 1 NGN = 0.00065 USD, 1 USD = 1 USD
	out, rate, err := Convert(d("10000"), d("0.00065"), d("1"), 2)
	require.NoError(t, err)
	assert.True(t, out.Equal(d("6.5")), out.String())
	assert.True(t, rate.Equal(d("0.00065")))

	_, _, err = Convert(d("1"), decimal.Zero, d("1"), 2)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestSumAndFormat(t *testing.T) {
	assert.True(t, Sum(d("1.10"), d("2.20"), d("3")).Equal(d("6.3")))
	assert.Equal(t, "₦2,500.00", Format(d("2500"), 2, "₦"))
	assert.Equal(t, "$1,234,567.89", Format(d("1234567.891"), 2, "$"))
	assert.Equal(t, "-$12.50", Format(d("-12.5"), 2, "$"))
	assert.Equal(t, "¥500", Format(d("500"), 0, "¥"))
}
