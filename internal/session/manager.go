// Package session tracks live checkout sessions. Each session is an
// explicit context object created per shopper and torn down on logout or
// after idle expiry; nothing here is process-global state shared between
// shoppers.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grocerly/checkout/internal/domain/cart"
	"github.com/grocerly/checkout/internal/domain/checkout"
)

// ErrNotFound is returned for unknown or expired session identifiers that
// have no persisted cart to resume from.
var ErrNotFound = errors.New("session not found")

// CartStore persists cart snapshots so sessions survive a service restart.
type CartStore interface {
	Save(ctx context.Context, sessionID string, items []cart.Item) error
	Load(ctx context.Context, sessionID string) ([]cart.Item, error)
	Delete(ctx context.Context, sessionID string) error
}

// Manager owns the live session registry.
type Manager struct {
	invoices checkout.InvoiceGateway
	payments checkout.PaymentGateway
	carts    CartStore
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sess     *checkout.Session
	lastSeen time.Time
}

// NewManager creates a Manager. Sessions idle longer than ttl are evicted by
// the sweep goroutine; their persisted cart snapshot remains, so they can be
// resumed by id.
func NewManager(invoices checkout.InvoiceGateway, payments checkout.PaymentGateway, carts CartStore, ttl time.Duration) *Manager {
	return &Manager{
		invoices: invoices,
		payments: payments,
		carts:    carts,
		ttl:      ttl,
		entries:  make(map[string]*entry),
	}
}

// Create starts a fresh session and returns its id.
func (m *Manager) Create(ctx context.Context) (string, *checkout.Session) {
	id := uuid.New().String()
	sess := checkout.NewSession(m.invoices, m.payments)

	m.mu.Lock()
	m.entries[id] = &entry{sess: sess, lastSeen: time.Now()}
	m.mu.Unlock()
	return id, sess
}

// Get returns the live session for id. Evicted sessions with a non-empty
// persisted cart snapshot are resumed transparently.
func (m *Manager) Get(ctx context.Context, id string) (*checkout.Session, error) {
	m.mu.Lock()
	if e, ok := m.entries[id]; ok {
		e.lastSeen = time.Now()
		sess := e.sess
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	items, err := m.carts.Load(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "load cart snapshot")
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	sess := checkout.NewSession(m.invoices, m.payments)
	sess.RestoreCart(items)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have resumed the same session concurrently.
	if e, ok := m.entries[id]; ok {
		e.lastSeen = time.Now()
		return e.sess, nil
	}
	m.entries[id] = &entry{sess: sess, lastSeen: time.Now()}
	return sess, nil
}

// Persist writes the session's current cart snapshot through to the store.
func (m *Manager) Persist(ctx context.Context, id string) error {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	return m.carts.Save(ctx, id, sess.CartItems())
}

// End tears the session down: it is removed from the registry and its
// persisted snapshot is deleted.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return m.carts.Delete(ctx, id)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweep launches a goroutine that evicts idle sessions every interval.
// It stops when ctx is cancelled.
func (m *Manager) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.sweep(time.Now()); n > 0 {
					zctx.From(ctx).Debug("evicted idle sessions", zap.Int("count", n))
				}
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.entries {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.entries, id)
			evicted++
		}
	}
	return evicted
}
