package commerce

import (
	"fmt"
	"sync"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/vault"
)

// Resolver builds and caches a CommerceClient per channel, decrypting its
// API credentials through the vault on first use (spec.md §4.1, §6.1).
// Implements lifecycle.CommerceResolver structurally.
type Resolver struct {
	vault *vault.Vault

	mu      sync.Mutex
	clients map[string]CommerceClient
}

// NewResolver builds a Resolver backed by v.
func NewResolver(v *vault.Vault) *Resolver {
	return &Resolver{vault: v, clients: make(map[string]CommerceClient)}
}

// Resolve returns the cached client for channel, decrypting and
// constructing one on first request.
func (r *Resolver) Resolve(channel domain.Channel) (CommerceClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[channel.ID]; ok {
		return c, nil
	}

	apiKey, err := r.vault.SafeDecrypt(channel.EncryptedAPIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt channel %s api key: %w", channel.ID, err)
	}
	apiSecret, err := r.vault.SafeDecrypt(channel.EncryptedAPISecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt channel %s api secret: %w", channel.ID, err)
	}

	var client CommerceClient
	switch channel.Type {
	case domain.ChannelStorefront:
		client = NewStorefront(channel.BaseURL, apiKey, apiSecret)
	case domain.ChannelWebshop:
		client = NewWebshop(channel.BaseURL, apiKey, apiSecret)
	default:
		return nil, fmt.Errorf("unknown channel type %q for channel %s", channel.Type, channel.ID)
	}

	r.clients[channel.ID] = client
	return client, nil
}

// Invalidate drops a cached client, used after credential rotation so the
// next Resolve call rebuilds it from the freshly updated channel row.
func (r *Resolver) Invalidate(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, channelID)
}
