package commerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/vault"
)

const testKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"

func testChannel(t *testing.T, v *vault.Vault, id string, typ domain.ChannelType) domain.Channel {
	t.Helper()
	key, err := v.Encrypt("key-" + id)
	require.NoError(t, err)
	secret, err := v.Encrypt("secret-" + id)
	require.NoError(t, err)
	return domain.Channel{
		ID:                 id,
		Type:               typ,
		BaseURL:            "https://example.test",
		EncryptedAPIKey:    key,
		EncryptedAPISecret: secret,
	}
}

func TestResolverBuildsStorefrontAndWebshopClients(t *testing.T) {
	v, err := vault.New(testKeyHex)
	require.NoError(t, err)
	r := NewResolver(v)

	sf, err := r.Resolve(testChannel(t, v, "c-storefront", domain.ChannelStorefront))
	require.NoError(t, err)
	_, ok := sf.(*Storefront)
	assert.True(t, ok)

	ws, err := r.Resolve(testChannel(t, v, "c-webshop", domain.ChannelWebshop))
	require.NoError(t, err)
	_, ok = ws.(*Webshop)
	assert.True(t, ok)
}

func TestResolverCachesClientPerChannel(t *testing.T) {
	v, err := vault.New(testKeyHex)
	require.NoError(t, err)
	r := NewResolver(v)
	channel := testChannel(t, v, "c-1", domain.ChannelStorefront)

	first, err := r.Resolve(channel)
	require.NoError(t, err)
	second, err := r.Resolve(channel)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolverInvalidateForcesRebuild(t *testing.T) {
	v, err := vault.New(testKeyHex)
	require.NoError(t, err)
	r := NewResolver(v)
	channel := testChannel(t, v, "c-1", domain.ChannelStorefront)

	first, err := r.Resolve(channel)
	require.NoError(t, err)
	r.Invalidate(channel.ID)
	second, err := r.Resolve(channel)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestResolverRejectsUnknownChannelType(t *testing.T) {
	v, err := vault.New(testKeyHex)
	require.NoError(t, err)
	r := NewResolver(v)

	_, err = r.Resolve(testChannel(t, v, "c-bad", domain.ChannelType("unknown")))
	assert.Error(t, err)
}
