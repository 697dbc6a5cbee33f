package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTripAndAuthentication(t *testing.T) {
	s, err := NewSealer("process-secret", "walletcore/test/v1")
	require.NoError(t, err)

	a, err := s.Seal([]byte(`{"code":"123456"}`))
	require.NoError(t, err)
	b, err := s.Seal([]byte(`{"code":"123456"}`))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "every seal uses a fresh nonce")
	assert.NotContains(t, a, "123456")

	plain, err := s.Open(a)
	require.NoError(t, err)
	assert.Equal(t, `{"code":"123456"}`, string(plain))

	other, err := NewSealer("process-secret", "walletcore/other/v1")
	require.NoError(t, err)
	_, err = other.Open(a)
	assert.Error(t, err, "keys are bound to their purpose")

	tampered := a[:len(a)-2] + strings.Repeat("0", 2)
	if tampered == a {
		tampered = a[:len(a)-2] + "ff"
	}
	_, err = s.Open(tampered)
	assert.Error(t, err)

	_, err = s.Open("abcd")
	assert.ErrorIs(t, err, ErrCiphertextShort)
	_, err = s.Open("not-hex")
	assert.Error(t, err)
}

func TestSealer_KeyValidation(t *testing.T) {
	_, err := NewSealer("", "purpose")
	assert.Error(t, err)
	_, err = NewSealerWithKey([]byte("short"))
	assert.ErrorIs(t, err, ErrSealerKeySize)
}
