package usecases_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/usecases"
)

func lastCode(t *testing.T, h *harness, c entities.Channel) string {
	t.Helper()
	payloads := h.queue.byChannel(c)
	require.NotEmpty(t, payloads, "no %s delivery queued", c)
	code, ok := h.deliveryContext(payloads[len(payloads)-1])["code"].(string)
	require.True(t, ok)
	return code
}

func TestAuthUsecase_RegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)

	user, err := h.auth.Register(h.ctx, &entities.RegisterInput{
		Email:     "Ada@Example.com",
		Password:  testPassword,
		FirstName: "Ada",
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email.String)
	assert.False(t, user.IsVerified)
	assert.Equal(t, entities.UserRoleClient, user.Role)

	_, err = h.auth.Login(h.ctx, &entities.LoginInput{Identifier: "ada@example.com", Password: testPassword}, "10.0.0.1")
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotVerified)

	code := lastCode(t, h, entities.ChannelEmail)
	stored, _, err := h.notifRepo.ListByUser(h.ctx, user.ID, false, 10, 0)
	require.NoError(t, err)
	for _, n := range stored {
		assert.NotContains(t, n.Body, code)
		if v, ok := n.Metadata["code"]; ok {
			assert.Equal(t, "[REDACTED]", v)
		}
	}

	_, err = h.auth.VerifyOTP(h.ctx, &entities.VerifyOTPInput{UserID: user.ID, Code: "000000x"}, "10.0.0.1")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	res, err := h.auth.VerifyOTP(h.ctx, &entities.VerifyOTPInput{UserID: user.ID, Code: code}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, res.User.IsVerified)

	_, err = h.auth.VerifyOTP(h.ctx, &entities.VerifyOTPInput{UserID: user.ID, Code: code}, "10.0.0.1")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized, "codes are single use")

	login, err := h.auth.Login(h.ctx, &entities.LoginInput{Identifier: "ADA@example.com", Password: testPassword}, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, login.User.LastLoginAt.Valid)

	pair, err := h.auth.Refresh(h.ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = h.auth.Refresh(h.ctx, login.AccessToken)
	assert.Error(t, err, "access tokens cannot refresh")

	err = h.auth.ResendOTP(h.ctx, user.ID, usecases.OTPPurposeActivation)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestAuthUsecase_RegisterValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name  string
		input entities.RegisterInput
	}{
		{"no contact", entities.RegisterInput{Password: testPassword}},
		{"both contacts", entities.RegisterInput{Email: "a@b.co", Phone: "+2348000000000", Password: testPassword}},
		{"short password", entities.RegisterInput{Email: "a@b.co", Password: "short"}},
		{"staff role", entities.RegisterInput{Email: "a@b.co", Password: testPassword, Role: entities.UserRoleAdmin}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			_, err := h.auth.Register(h.ctx, &input, "")
			assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
		})
	}

	_, err := h.auth.Register(h.ctx, &entities.RegisterInput{Phone: "+2348000000000", Password: testPassword, Role: entities.UserRoleVendor}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, h.queue.byChannel(entities.ChannelSMS), "phone-only accounts get the code by sms")

	_, err = h.auth.Register(h.ctx, &entities.RegisterInput{Phone: "+2348000000000", Password: testPassword}, "")
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestAuthUsecase_LoginLockout(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(h.ctx, &entities.RegisterInput{Email: "lock@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := h.auth.Login(h.ctx, &entities.LoginInput{Identifier: "lock@example.com", Password: "wrong-password"}, "10.0.0.9")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	}
	_, err = h.auth.Login(h.ctx, &entities.LoginInput{Identifier: "lock@example.com", Password: testPassword}, "10.0.0.9")
	assert.ErrorIs(t, err, domainerrors.ErrRateLimited)

	_, err = h.auth.Login(h.ctx, &entities.LoginInput{Identifier: "lock@example.com", Password: testPassword}, "10.0.0.10")
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotVerified, "other addresses are not blocked")

	failures := h.auditLogs(entities.AuditFilter{Category: entities.AuditCategoryAuth})
	warnings := 0
	for _, l := range failures {
		if l.EventType == "auth.login_failed" {
			warnings++
			assert.Equal(t, entities.SeverityWarning, l.Severity)
			assert.NotContains(t, l.RequestSummary, "password")
		}
	}
	assert.Equal(t, 5, warnings)
}

func TestAuthUsecase_GoogleLoginDisabled(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.GoogleLogin(h.ctx, "id-token", "")
	assert.ErrorIs(t, err, domainerrors.ErrBadRequest)
}
