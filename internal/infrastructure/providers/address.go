package providers

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	domainerrors "walletcore.backend/internal/domain/errors"
)

// NormalizeCryptoAddress validates an EVM payout address and returns its
// EIP-55 form. Mixed-case input must already carry a valid checksum.
func NormalizeCryptoAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: malformed crypto address", domainerrors.ErrInvalidInput)
	}
	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("%w: zero address", domainerrors.ErrInvalidInput)
	}
	body := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	mixed := strings.ToLower(body) != body && strings.ToUpper(body) != body
	if mixed && addr.Hex()[2:] != body {
		return "", fmt.Errorf("%w: bad address checksum", domainerrors.ErrInvalidInput)
	}
	return addr.Hex(), nil
}
