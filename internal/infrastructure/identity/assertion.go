package identity

import (
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"

	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/pkg/crypto"
)

// Assertion is the payload a device signs with its biometric-bound key.
type Assertion struct {
	Challenge string `json:"challenge"`
	DeviceID  string `json:"device_id"`
	SignCount int64  `json:"sign_count"`
}

// ParsePublicJWK decodes and validates a device public key.
func ParsePublicJWK(raw string) (*jose.JSONWebKey, error) {
	var key jose.JSONWebKey
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, fmt.Errorf("%w: malformed public key", domainerrors.ErrInvalidInput)
	}
	if !key.Valid() || !key.IsPublic() {
		return nil, fmt.Errorf("%w: public key required", domainerrors.ErrInvalidInput)
	}
	return &key, nil
}

// VerifyAssertion checks a compact JWS signed by key over an Assertion for
// the expected challenge and device. lastSignCount guards against replayed
// assertions; a counter of zero on both sides is accepted for devices that
// do not keep one.
func VerifyAssertion(key *jose.JSONWebKey, compact, challenge, deviceID string, lastSignCount int64) (*Assertion, error) {
	sig, err := jose.ParseSigned(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed assertion", domainerrors.ErrInvalidSignature)
	}
	payload, err := sig.Verify(key)
	if err != nil {
		return nil, fmt.Errorf("%w: assertion signature", domainerrors.ErrInvalidSignature)
	}
	var a Assertion
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("%w: assertion payload", domainerrors.ErrInvalidSignature)
	}
	if challenge == "" || !crypto.ConstantTimeEqual(a.Challenge, challenge) {
		return nil, fmt.Errorf("%w: challenge mismatch", domainerrors.ErrInvalidCredentials)
	}
	if a.DeviceID != deviceID {
		return nil, fmt.Errorf("%w: device mismatch", domainerrors.ErrInvalidCredentials)
	}
	if (a.SignCount != 0 || lastSignCount != 0) && a.SignCount <= lastSignCount {
		return nil, fmt.Errorf("%w: stale sign counter", domainerrors.ErrInvalidCredentials)
	}
	return &a, nil
}
