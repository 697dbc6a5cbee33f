package usecases_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/usecases"
)

func TestSanitize(t *testing.T) {
	in := map[string]interface{}{
		"pin":            "1234",
		"new_pin":        "4321",
		"Password":       "hunter2",
		"cvv":            "123",
		"card-number":    "4111111111111111",
		"otp":            "654321",
		"code":           "654321",
		"refresh_token":  "abc",
		"secretKey":      "sk_live",
		"bankCode":       "058",
		"amount":         "10.00",
		"nested":         map[string]interface{}{"cardNumber": "4111", "last4": "1111"},
		"list":           []interface{}{map[string]interface{}{"pin": "0000"}},
		"headers":        map[string]string{"token": "t", "ip": "127.0.0.1"},
		"accountNumbers": []interface{}{"0123456789"},
		"requires_pin":   true,
	}
	out := usecases.Sanitize(in)

	for _, k := range []string{"pin", "new_pin", "Password", "cvv", "card-number", "otp", "code", "refresh_token", "secretKey"} {
		assert.Equal(t, "[REDACTED]", out[k], k)
	}
	assert.Equal(t, "058", out["bankCode"])
	assert.Equal(t, "10.00", out["amount"])
	assert.Equal(t, true, out["requires_pin"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", nested["cardNumber"])
	assert.Equal(t, "1111", nested["last4"])
	assert.Equal(t, "[REDACTED]", out["list"].([]interface{})[0].(map[string]interface{})["pin"])
	headers := out["headers"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", headers["token"])
	assert.Equal(t, "127.0.0.1", headers["ip"])

	// the input is left untouched
	assert.Equal(t, "1234", in["pin"])
	assert.Nil(t, usecases.Sanitize(nil))
}

func TestAuditRecord_StoresSanitizedSnapshot(t *testing.T) {
	h := newHarness(t)
	actor := h.user(entities.UserRoleStaff)

	require.NoError(t, h.audit.Record(h.ctx, usecases.AuditEntry{
		EventType:    "wallet.pin_changed",
		Category:     entities.AuditCategoryWallet,
		Severity:     entities.SeverityInfo,
		ActorID:      &actor.ID,
		ActorEmail:   actor.Email.String,
		IP:           "10.0.0.1",
		Action:       "update",
		ResourceType: "wallet",
		ResourceID:   "w-1",
		Request:      map[string]interface{}{"currentPin": "1234", "newPin": "9876", "channel": "app"},
		NewValues:    map[string]interface{}{"status": "active", "requiresPin": true},
	}))

	logs := h.auditLogs(entities.AuditFilter{ResourceType: "wallet", ResourceID: "w-1"})
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, "[REDACTED]", entry.RequestSummary["currentPin"])
	assert.Equal(t, "[REDACTED]", entry.RequestSummary["newPin"])
	assert.Equal(t, "app", entry.RequestSummary["channel"])
	assert.Equal(t, "active", entry.NewValues["status"])
	assert.Equal(t, true, entry.NewValues["requiresPin"])
	assert.Equal(t, actor.Email.String, entry.UserEmail.String)
	assert.Equal(t, "10.0.0.1", entry.IPAddress.String)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, actor.ID, *entry.UserID)
}
