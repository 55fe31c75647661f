package ffn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	accessToken string
	expiresAt   time.Time
	saved       bool
}

func (f *fakeTokenStore) LoadTokens(ctx context.Context, tenantID string) (string, string, string, string, time.Time, error) {
	return f.accessToken, "refresh-tok", "client-id", "client-secret", f.expiresAt, nil
}

func (f *fakeTokenStore) SaveTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	f.saved = true
	f.accessToken = accessToken
	f.expiresAt = expiresAt
	return nil
}

func TestEnsureValidTokenReturnsCachedTokenWhenFresh(t *testing.T) {
	store := &fakeTokenStore{accessToken: "tok-123", expiresAt: time.Now().Add(time.Hour)}
	c := New("https://ffn.example/api/v1", store)

	token, err := c.ensureValidToken(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.False(t, store.saved, "should not refresh a token well within the validity window")
}

func TestProductCacheServesWithoutNetworkCall(t *testing.T) {
	c := New("https://ffn.example/api/v1", &fakeTokenStore{})
	c.productLRU.Add(cacheKey("tenant-1", "SKU-1"), Product{SKU: "SKU-1", AvailableStock: 5})

	p, err := c.GetProductByMerchantSku(context.Background(), "tenant-1", "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.AvailableStock)
}

func TestProductCacheRemoveDropsEntry(t *testing.T) {
	c := New("https://ffn.example/api/v1", &fakeTokenStore{})
	key := cacheKey("tenant-1", "SKU-2")
	c.productLRU.Add(key, Product{SKU: "SKU-2", AvailableStock: 1})

	_, ok := c.productLRU.Get(key)
	require.True(t, ok)

	c.productLRU.Remove(key)
	_, ok = c.productLRU.Get(key)
	assert.False(t, ok)
}
