// Package memory provides in-memory stand-ins for the postgres storage
// layer, used when the service runs without a database and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/grocerly/checkout/internal/domain/cart"
)

// CartRepository keeps cart snapshots in a map. Safe for concurrent use.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string][]cart.Item
}

// NewCartRepository returns an empty in-memory repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string][]cart.Item)}
}

// Save replaces the stored snapshot for the session.
func (r *CartRepository) Save(_ context.Context, sessionID string, items []cart.Item) error {
	snapshot := make([]cart.Item, len(items))
	copy(snapshot, items)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[sessionID] = snapshot
	return nil
}

// Load returns the stored snapshot, or an empty slice for unknown sessions.
func (r *CartRepository) Load(_ context.Context, sessionID string) ([]cart.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.carts[sessionID]
	items := make([]cart.Item, len(stored))
	copy(items, stored)
	return items, nil
}

// Delete drops the stored snapshot.
func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}
