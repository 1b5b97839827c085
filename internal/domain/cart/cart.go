// Package cart holds the unique-by-product list of items pending checkout.
// All mutation operations coerce their inputs and never fail;
// invalid entries are dropped, not error-signaled.
package cart

// Cart is the per-session shopping cart. It is not safe for concurrent use;
// the owning checkout session serializes access to it.
type Cart struct {
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Items returns a copy of the current cart lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of distinct product lines in the cart.
func (c *Cart) Len() int {
	return len(c.items)
}

// SetItems normalizes the given raw entries and replaces the full item list
// atomically. Entries lacking a valid positive-integer product identifier
// are silently excluded; entries repeating a product identifier merge into
// one line with their quantities summed.
func (c *Cart) SetItems(raws []RawItem) {
	c.items = NormalizeAll(raws)
}

// Add normalizes the item and merges it into the cart: an existing line for
// the same product has its quantity incremented by the new item's quantity,
// otherwise the item is appended. Items failing product validation are a
// no-op.
func (c *Cart) Add(raw RawItem) {
	item, ok := Normalize(raw)
	if !ok {
		return
	}
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	c.items = append(c.items, item)
}

// UpdateQuantity replaces the quantity of the matching line exactly. A
// quantity below 1 means "remove this product", not an error. Absent
// products are a no-op.
func (c *Cart) UpdateQuantity(productID int64, quantity int) {
	if quantity < 1 {
		c.Remove(productID)
		return
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = quantity
			return
		}
	}
}

// Remove filters out the matching line. Absent products are a no-op.
func (c *Cart) Remove(productID int64) {
	kept := c.items[:0]
	for _, item := range c.items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.items = kept
}

// Clear empties the cart unconditionally, as a single atomic replace.
func (c *Cart) Clear() {
	c.items = nil
}

// Restore replaces the cart contents with already-normalized items, used
// when resuming a persisted session snapshot.
func (c *Cart) Restore(items []Item) {
	c.items = make([]Item, len(items))
	copy(c.items, items)
}
