package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// TokenCipher encrypts OAuth tokens at rest with an AEAD. Ciphertext is
// base64(nonce || sealed) so a single column holds everything needed to
// decrypt.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a hex-encoded 32-byte key.
func NewTokenCipher(hexKey string) (*TokenCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not valid hex", marketplace.ErrEncryptionKeyInvalid)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d",
			marketplace.ErrEncryptionKeyInvalid, chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AEAD: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals a plaintext token for storage.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored ciphertext and returns the plaintext token.
func (c *TokenCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("stored token is not valid base64: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", fmt.Errorf("stored token ciphertext too short")
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt stored token: %w", err)
	}
	return string(plaintext), nil
}
