package postgres

import (
	"context"
	"time"

	"github.com/shipbridge/sync-engine/internal/vault"
)

// TokenStore adapts the ffn_configs table plus the credential vault into
// the shape internal/ffn.Client expects for token persistence (spec.md
// §4.2 "persist new {accessToken, refreshToken, expiresAt} atomically
// through the vault back to the FFN configuration row"). Defined here,
// not in internal/ffn, to avoid that package depending on the store.
type TokenStore struct {
	v *vault.Vault
}

// NewTokenStore builds a TokenStore using v to encrypt/decrypt secrets at
// rest.
func NewTokenStore(v *vault.Vault) *TokenStore {
	return &TokenStore{v: v}
}

// LoadTokens decrypts and returns the current token set plus the OAuth
// client credentials for tenantID.
func (s *TokenStore) LoadTokens(ctx context.Context, tenantID string) (accessToken, refreshToken, clientID, clientSecret string, expiresAt time.Time, err error) {
	cfg, err := GetFFNConfig(tenantID)
	if err != nil {
		return "", "", "", "", time.Time{}, err
	}

	accessToken, err = s.v.SafeDecrypt(cfg.EncryptedAccessToken)
	if err != nil {
		return "", "", "", "", time.Time{}, err
	}
	refreshToken, err = s.v.SafeDecrypt(cfg.EncryptedRefreshToken)
	if err != nil {
		return "", "", "", "", time.Time{}, err
	}
	clientSecret, err = s.v.SafeDecrypt(cfg.EncryptedClientSecret)
	if err != nil {
		return "", "", "", "", time.Time{}, err
	}
	return accessToken, refreshToken, cfg.ClientID, clientSecret, cfg.TokenExpiresAt, nil
}

// SaveTokens encrypts and persists a refreshed token set.
func (s *TokenStore) SaveTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	encAccess, err := s.v.Encrypt(accessToken)
	if err != nil {
		return err
	}
	encRefresh, err := s.v.Encrypt(refreshToken)
	if err != nil {
		return err
	}
	return UpdateFFNTokens(tenantID, encAccess, encRefresh, expiresAt)
}
