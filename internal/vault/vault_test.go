package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyHex() string {
	return strings.Repeat("ab", 32)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKeyHex())
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("super-secret-client-id")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(ciphertext, ":"))
	assert.True(t, IsEncrypted(ciphertext))

	plaintext, err := v.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-client-id", plaintext)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	v1, err := New(testKeyHex())
	require.NoError(t, err)
	v2, err := New(strings.Repeat("cd", 32))
	require.NoError(t, err)

	ciphertext, err := v1.Encrypt("payload")
	require.NoError(t, err)

	_, err = v2.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestSafeDecryptPassesThroughPlaintext(t *testing.T) {
	v, err := New(testKeyHex())
	require.NoError(t, err)

	out, err := v.SafeDecrypt("plain-legacy-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-legacy-value", out)
}

func TestIsEncryptedRejectsMalformedSegments(t *testing.T) {
	assert.False(t, IsEncrypted("not-a-ciphertext"))
	assert.False(t, IsEncrypted("a:b:c"))
	assert.False(t, IsEncrypted(""))
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	_, err := New("abcd")
	require.Error(t, err)
}
