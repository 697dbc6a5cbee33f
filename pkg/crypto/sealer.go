package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

var (
	ErrSealerKeySize   = errors.New("sealer key must be 32 bytes")
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// Sealer encrypts small payloads with AES-256-GCM. Output is hex of
// nonce||ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a purpose-bound 32-byte key from secret.
func NewSealer(secret, purpose string) (*Sealer, error) {
	key, err := DeriveKey(secret, purpose, 32)
	if err != nil {
		return nil, err
	}
	return NewSealerWithKey(key)
}

// NewSealerWithKey uses key as is.
func NewSealerWithKey(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, ErrSealerKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return hex.EncodeToString(s.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

// Open reverses Seal and authenticates the result.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(raw) < s.aead.NonceSize() {
		return nil, ErrCiphertextShort
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, ciphertext, nil)
}
