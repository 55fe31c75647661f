package scheduler

import (
	"github.com/hashicorp/go-memdb"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// channelEntry is the in-memory projection of a Channel the scheduler
// diffs against the DB's active-channel set each incremental/full sync
// batch (spec.md §4.9 "channel refresh").
type channelEntry struct {
	ID           string
	TenantID     string
	Type         domain.ChannelType
	TokenRevoked bool
}

func newChannelStateDB() (*memdb.MemDB, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"channel": {
				Name: "channel",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"tenant": {
						Name:    "tenant",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "TenantID"},
					},
				},
			},
		},
	}
	return memdb.NewMemDB(schema)
}

// refreshChannelState diffs the DB's active channels for tenantID against
// the in-memory state, inserting newcomers and dropping channels that are
// no longer active (spec.md §4.9). Returns the current active, non-token-
// revoked channels to process this tick.
func (s *Scheduler) refreshChannelState(tenantID string) ([]domain.Channel, error) {
	active, err := postgres.ListActiveChannels(tenantID)
	if err != nil {
		return nil, err
	}

	txn := s.channelState.Txn(true)
	defer txn.Abort()

	known := map[string]bool{}
	it, err := txn.Get("channel", "tenant", tenantID)
	if err == nil {
		for raw := it.Next(); raw != nil; raw = it.Next() {
			known[raw.(*channelEntry).ID] = true
		}
	}

	seen := map[string]bool{}
	usable := make([]domain.Channel, 0, len(active))
	for _, ch := range active {
		seen[ch.ID] = true
		if err := txn.Insert("channel", &channelEntry{ID: ch.ID, TenantID: ch.TenantID, Type: ch.Type, TokenRevoked: ch.TokenRevoked}); err != nil {
			return nil, err
		}
		if ch.TokenRevoked {
			continue
		}
		usable = append(usable, ch)
	}

	for id := range known {
		if !seen[id] {
			if raw, err := txn.First("channel", "id", id); err == nil && raw != nil {
				_ = txn.Delete("channel", raw)
			}
		}
	}

	txn.Commit()
	return usable, nil
}
