package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipbridge/sync-engine/internal/domain"
)

func TestNewChannelStateDBBuildsSchema(t *testing.T) {
	db, err := newChannelStateDB()
	require.NoError(t, err)
	require.NotNil(t, db)

	txn := db.Txn(true)
	err = txn.Insert("channel", &channelEntry{ID: "c1", TenantID: "t1", Type: domain.ChannelStorefront})
	require.NoError(t, err)
	txn.Commit()

	txn2 := db.Txn(false)
	raw, err := txn2.First("channel", "id", "c1")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "t1", raw.(*channelEntry).TenantID)
}

func TestNewDefaultsConcurrencyWhenNonPositive(t *testing.T) {
	s, err := New(nil, nil, nil, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxConcurrentSyncs, s.maxConcurrentSyncs)
}

func TestNewHonorsExplicitConcurrency(t *testing.T) {
	s, err := New(nil, nil, nil, nil, nil, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.maxConcurrentSyncs)
}
