package session

import (
	"context"
	"encoding/json"
	"sync"

	autosell_errors "xianyu-autosell/pkg/errors"
)

// Client is one seller account's connection to the marketplace.
type Client interface {
	AccountID() string
	IsAlive() bool
	// FetchOrderDetail returns the raw "data" object of the order-detail call,
	// or nil when the upstream answered without one.
	FetchOrderDetail(ctx context.Context, orderID string) (json.RawMessage, error)
}

// Factory builds a client for an account that has not been registered.
type Factory func(accountID string) Client

// Registry resolves account ids to live clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	factory Factory
}

// NewRegistry creates a registry. factory may be nil, in which case only
// registered clients are returned.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		factory: factory,
	}
}

func (r *Registry) Register(c Client) {
	r.mu.Lock()
	r.clients[c.AccountID()] = c
	r.mu.Unlock()
}

func (r *Registry) Unregister(accountID string) {
	r.mu.Lock()
	delete(r.clients, accountID)
	r.mu.Unlock()
}

// Lookup returns a live client for accountID or ErrClientUnavailable.
func (r *Registry) Lookup(accountID string) (Client, error) {
	r.mu.RLock()
	c, ok := r.clients[accountID]
	r.mu.RUnlock()

	if !ok && r.factory != nil {
		r.mu.Lock()
		if c, ok = r.clients[accountID]; !ok {
			c = r.factory(accountID)
			if c != nil {
				r.clients[accountID] = c
				ok = true
			}
		}
		r.mu.Unlock()
	}
	if !ok || c == nil || !c.IsAlive() {
		return nil, autosell_errors.ErrClientUnavailable
	}
	return c, nil
}

// Accounts lists registered account ids.
func (r *Registry) Accounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
