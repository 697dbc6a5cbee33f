package usecases

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/pkg/money"
	"walletcore.backend/pkg/utils"
)

// nowFunc is the clock used by every usecase. Tests replace it.
var nowFunc = func() time.Time { return time.Now().UTC() }

// newReference builds a human readable unique reference, e.g. TRF-0190A3C4E5F6A7B8.
func newReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(utils.GenerateUUIDv7().String(), "-", ""))
	return prefix + "-" + id[:8] + id[len(id)-8:]
}

// parseAmount parses and validates a positive amount for a currency.
func parseAmount(raw string, currency *entities.Currency) (decimal.Decimal, error) {
	amount, err := money.Parse(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domainerrors.Validation("invalid amount", map[string]string{"amount": "must be a decimal number"})
	}
	return checkAmount(amount, currency, "amount")
}

// parseOptionalAmount parses a non-negative amount, empty meaning zero.
func parseOptionalAmount(raw string, currency *entities.Currency, field string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, domainerrors.Validation("invalid "+field, map[string]string{field: "must be a decimal number"})
	}
	if amount.IsZero() {
		return amount, nil
	}
	return checkAmount(amount, currency, field)
}

func checkAmount(amount decimal.Decimal, currency *entities.Currency, field string) (decimal.Decimal, error) {
	if err := money.ValidatePositive(amount, currency.DecimalPlaces); err != nil {
		return decimal.Zero, domainerrors.Validation("invalid "+field, map[string]string{field: err.Error()})
	}
	return amount, nil
}

// orderedIDs returns a and b in ascending byte order, the canonical wallet lock order.
func orderedIDs(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// detach keeps request values (request id, user id) but drops cancellation,
// so a client disconnect never aborts a database transaction half way.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func actorString(id *uuid.UUID) string {
	if id == nil {
		return systemActor
	}
	return id.String()
}

func maskPAN(number string) string {
	if len(number) < 10 {
		return strings.Repeat("*", len(number))
	}
	return number[:6] + strings.Repeat("*", len(number)-10) + number[len(number)-4:]
}

func pageOffset(page, limit int) (int, int, int) {
	p := utils.GetPaginationParams(page, limit)
	return p.Page, p.Limit, p.CalculateOffset()
}

func describe(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func nullString(s string) null.String {
	return null.StringFrom(s)
}
