package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grocerly/checkout/internal/domain/cart"
)

// CartRepository stores write-through cart snapshots per checkout session,
// so a session's cart survives a service restart.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Save replaces the stored snapshot for the session with the given items.
// The replace is transactional: readers never observe a partial cart.
func (r *CartRepository) Save(ctx context.Context, sessionID string, items []cart.Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID); err != nil {
		return errors.Wrap(err, "clear cart snapshot")
	}

	for pos, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO cart_items (session_id, product_id, quantity, name, unit_price, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sessionID, item.ProductID, item.Quantity, item.Name, item.Price, pos,
		)
		if err != nil {
			return errors.Wrapf(err, "insert cart item %d", item.ProductID)
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}

// Load returns the stored snapshot in insertion order. A session without a
// snapshot yields an empty slice, not an error.
func (r *CartRepository) Load(ctx context.Context, sessionID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, name, unit_price
		FROM cart_items
		WHERE session_id = $1
		ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query cart snapshot")
	}
	defer rows.Close()

	var items []cart.Item
	for rows.Next() {
		var item cart.Item
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Name, &item.Price); err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart items")
	}
	return items, nil
}

// Delete drops the stored snapshot for the session.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID)
	return errors.Wrap(err, "delete cart snapshot")
}
