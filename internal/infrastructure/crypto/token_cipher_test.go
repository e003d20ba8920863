package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("APP_USR-1234567890-access-token")
	require.NoError(t, err)
	assert.NotContains(t, enc, "APP_USR")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-1234567890-access-token", dec)
}

func TestTokenCipher_DistinctCiphertexts(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	a, err := c.Encrypt("same-token")
	require.NoError(t, err)
	b, err := c.Encrypt("same-token")
	require.NoError(t, err)

	// Random nonces mean the same plaintext never repeats on disk.
	assert.NotEqual(t, a, b)
}

func TestTokenCipher_TamperDetected(t *testing.T) {
	c, err := NewTokenCipher(testKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("secret")
	require.NoError(t, err)

	tampered := strings.ToLower(enc[:4]) + enc[4:]
	if tampered == enc {
		tampered = strings.ToUpper(enc[:4]) + enc[4:]
	}
	_, err = c.Decrypt(tampered)
	assert.Error(t, err)
}

func TestNewTokenCipher_RejectsBadKeys(t *testing.T) {
	_, err := NewTokenCipher("not-hex")
	assert.ErrorIs(t, err, marketplace.ErrEncryptionKeyInvalid)

	short := hex.EncodeToString([]byte("too-short"))
	_, err = NewTokenCipher(short)
	assert.ErrorIs(t, err, marketplace.ErrEncryptionKeyInvalid)
}
