package usecases_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
)

type device struct {
	id   string
	priv *ecdsa.PrivateKey
}

func newDevice(t *testing.T, id string) *device {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &device{id: id, priv: priv}
}

func (d *device) publicJWK(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(jose.JSONWebKey{Key: &d.priv.PublicKey, Algorithm: string(jose.ES256)})
	require.NoError(t, err)
	return string(raw)
}

func (d *device) sign(t *testing.T, challenge string, count int64) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: d.priv}, nil)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"challenge":  challenge,
		"device_id":  d.id,
		"sign_count": count,
	})
	require.NoError(t, err)
	obj, err := signer.Sign(payload)
	require.NoError(t, err)
	compact, err := obj.CompactSerialize()
	require.NoError(t, err)
	return compact
}

func enroll(t *testing.T, h *harness, user *entities.User, d *device) string {
	t.Helper()
	opts, err := h.biometric.RegisterOptions(h.ctx, user.ID, d.id)
	require.NoError(t, err)
	assert.Positive(t, opts.Timeout)

	res, err := h.biometric.RegisterVerify(h.ctx, user.ID, &entities.BiometricRegisterInput{
		DeviceID:     d.id,
		DeviceInfo:   "Pixel 8",
		CredentialID: "cred-" + d.id,
		PublicKeyJWK: d.publicJWK(t),
		Assertion:    d.sign(t, opts.Challenge, 1),
	}, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, res.TrustToken)
	assert.True(t, res.ExpiresAt.After(res.User.UpdatedAt))
	return res.TrustToken
}

func TestBiometricUsecase_EnrollAndLogin(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	d := newDevice(t, "device-1")
	h.clearDeliveries()

	token := enroll(t, h, user, d)

	alerts := h.publisher.forUser(user.ID)
	require.Len(t, alerts, 1)
	n := alerts[0].Data.(*entities.Notification)
	assert.Equal(t, entities.NotificationSecurityAlert, n.Type)

	stored, err := h.userRepo.GetByID(h.ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, stored.TrustToken.String, "only the hash is stored")

	opts, err := h.biometric.LoginOptions(h.ctx, user.ID, d.id, token)
	require.NoError(t, err)
	res, err := h.biometric.LoginVerify(h.ctx, &entities.BiometricLoginInput{
		UserID:     user.ID,
		DeviceID:   d.id,
		TrustToken: token,
		Assertion:  d.sign(t, opts.Challenge, 2),
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	// replaying the counter is rejected even with a fresh challenge
	opts, err = h.biometric.LoginOptions(h.ctx, user.ID, d.id, token)
	require.NoError(t, err)
	_, err = h.biometric.LoginVerify(h.ctx, &entities.BiometricLoginInput{
		UserID:     user.ID,
		DeviceID:   d.id,
		TrustToken: token,
		Assertion:  d.sign(t, opts.Challenge, 2),
	}, "10.0.0.1")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	failed := 0
	for _, l := range h.auditLogs(entities.AuditFilter{Category: entities.AuditCategoryAuth}) {
		if l.EventType == "auth.biometric_failed" {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestBiometricUsecase_RejectsForeignKeyAndToken(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	d := newDevice(t, "device-1")
	token := enroll(t, h, user, d)

	_, err := h.biometric.LoginOptions(h.ctx, user.ID, d.id, "not-the-token")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	opts, err := h.biometric.LoginOptions(h.ctx, user.ID, d.id, token)
	require.NoError(t, err)
	intruder := newDevice(t, d.id)
	_, err = h.biometric.LoginVerify(h.ctx, &entities.BiometricLoginInput{
		UserID:     user.ID,
		DeviceID:   d.id,
		TrustToken: token,
		Assertion:  intruder.sign(t, opts.Challenge, 5),
	}, "")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = h.biometric.RegisterVerify(h.ctx, user.ID, &entities.BiometricRegisterInput{
		DeviceID:     "device-2",
		PublicKeyJWK: `{"kty":"oct"}`,
		Assertion:    "x",
	}, "")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestBiometricUsecase_ReenrollRevokesPreviousToken(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	d := newDevice(t, "device-1")

	first := enroll(t, h, user, d)
	second := enroll(t, h, user, newDevice(t, d.id))
	assert.NotEqual(t, first, second)

	_, err := h.biometric.LoginOptions(h.ctx, user.ID, d.id, first)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	_, err = h.biometric.LoginOptions(h.ctx, user.ID, d.id, second)
	assert.NoError(t, err)
}

func TestBiometricUsecase_RevokeDevice(t *testing.T) {
	h := newHarness(t)
	user := h.user(entities.UserRoleClient)
	d := newDevice(t, "device-1")
	token := enroll(t, h, user, d)

	require.NoError(t, h.biometric.RevokeDevice(h.ctx, user.ID, d.id, "10.0.0.1"))

	_, err := h.biometric.LoginOptions(h.ctx, user.ID, d.id, token)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	err = h.biometric.RevokeDevice(h.ctx, user.ID, d.id, "10.0.0.1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
