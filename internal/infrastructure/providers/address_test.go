package providers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "walletcore.backend/internal/domain/errors"
)

func TestNormalizeCryptoAddress(t *testing.T) {
	const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	got, err := NormalizeCryptoAddress(strings.ToLower(checksummed))
	require.NoError(t, err)
	assert.Equal(t, checksummed, got)

	got, err = NormalizeCryptoAddress(" " + checksummed + " ")
	require.NoError(t, err)
	assert.Equal(t, checksummed, got)

	bad := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"
	_, err = NormalizeCryptoAddress(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidInput))

	for _, addr := range []string{"", "0x123", "not-an-address", "0x0000000000000000000000000000000000000000"} {
		_, err := NormalizeCryptoAddress(addr)
		assert.Error(t, err, addr)
	}
}
