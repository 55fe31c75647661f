// Package vault implements the Credential Vault (spec.md §4.1): an
// authenticated symmetric encryption scheme over per-tenant secrets, with
// a safe-decrypt fallback for legacy unencrypted rows.
//
// AES-256-GCM is used directly from crypto/aes + crypto/cipher. No
// third-party crypto package from the example corpus offers this
// AES-GCM-with-explicit-iv/tag/body-hex-segments shape any more directly
// than the standard library already does (see DESIGN.md).
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/shipbridge/sync-engine/internal/errs"
)

const (
	keyLen   = 32 // AES-256
	nonceLen = 12 // standard GCM nonce size
	tagLen   = 16 // GCM authentication tag size
)

// Vault holds the process-wide 32-byte key loaded once at startup
// (spec.md §6.1 ENCRYPTION_KEY).
type Vault struct {
	key []byte
}

// New constructs a Vault from a 64-hex-char key string.
func New(keyHex string) (*Vault, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, &errs.CryptoError{Op: "load-key", Err: err}
	}
	if len(key) != keyLen {
		return nil, &errs.CryptoError{Op: "load-key", Err: fmt.Errorf("expected %d byte key, got %d", keyLen, len(key))}
	}
	return &Vault{key: key}, nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceLen)
}

// Encrypt returns "iv:authTag:body" (all hex) for plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	gcm, err := v.gcm()
	if err != nil {
		return "", &errs.CryptoError{Op: "encrypt", Err: err}
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &errs.CryptoError{Op: "encrypt", Err: err}
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	if len(sealed) < tagLen {
		return "", &errs.CryptoError{Op: "encrypt", Err: fmt.Errorf("unexpected sealed length %d", len(sealed))}
	}
	body := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(body),
	}, ":"), nil
}

// Decrypt reverses Encrypt. Returns CryptoError on malformed ciphertext or
// authentication failure (wrong key / tampered data).
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	iv, tag, body, err := splitSegments(ciphertext)
	if err != nil {
		return "", &errs.CryptoError{Op: "decrypt", Err: err}
	}

	gcm, err := v.gcm()
	if err != nil {
		return "", &errs.CryptoError{Op: "decrypt", Err: err}
	}

	sealed := append(append([]byte{}, body...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &errs.CryptoError{Op: "decrypt", Err: err}
	}
	return string(plaintext), nil
}

// SafeDecrypt returns the input unchanged if it is not a well-formed
// ciphertext, so legacy unencrypted rows keep working (spec.md §4.1).
func (v *Vault) SafeDecrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	return v.Decrypt(value)
}

// IsEncrypted mirrors the structural check SafeDecrypt/Decrypt use: three
// ':'-separated hex segments of the expected lengths.
func IsEncrypted(value string) bool {
	_, _, _, err := splitSegments(value)
	return err == nil
}

func splitSegments(ciphertext string) (iv, tag, body []byte, err error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("expected 3 hex segments, got %d", len(parts))
	}

	iv, err = hex.DecodeString(parts[0])
	if err != nil || len(iv) != nonceLen {
		return nil, nil, nil, fmt.Errorf("malformed iv segment")
	}
	tag, err = hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return nil, nil, nil, fmt.Errorf("malformed auth tag segment")
	}
	body, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("malformed body segment")
	}
	return iv, tag, body, nil
}
