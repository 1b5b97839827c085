package cart

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawItem(id float64, qty float64) RawItem {
	return RawItem{ProductID: id, HasID: true, Quantity: qty, HasQty: true}
}

func decode(t *testing.T, src string) RawItem {
	t.Helper()
	raw, err := DecodeRawItem(jx.DecodeStr(src))
	require.NoError(t, err)
	return raw
}

func TestDecodeRawItem_KeyVariants(t *testing.T) {
	tests := []struct {
		name string
		src  string
		id   float64
	}{
		{"snake case", `{"product_id": 7, "quantity": 2}`, 7},
		{"camel case", `{"productId": 7}`, 7},
		{"bare id", `{"id": 7}`, 7},
		{"string number", `{"product_id": "7"}`, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, tt.src)
			assert.True(t, raw.HasID)
			assert.Equal(t, tt.id, raw.ProductID)
		})
	}
}

func TestDecodeRawItem_KeyPrecedence(t *testing.T) {
	// An explicit product key always wins over the generic "id", regardless
	// of field order.
	raw := decode(t, `{"id": 99, "product_id": 7}`)
	assert.Equal(t, float64(7), raw.ProductID)

	raw = decode(t, `{"product_id": 7, "id": 99}`)
	assert.Equal(t, float64(7), raw.ProductID)

	raw = decode(t, `{"id": 99, "productId": 7}`)
	assert.Equal(t, float64(7), raw.ProductID)
}

func TestDecodeRawItem_UnknownKeysSkipped(t *testing.T) {
	raw := decode(t, `{"product_id": 3, "brand": "Acme", "tags": ["a"], "meta": {"x": 1}}`)
	assert.Equal(t, float64(3), raw.ProductID)
	assert.False(t, raw.HasQty)
}

func TestDecodeRawItem_JunkNumbers(t *testing.T) {
	// Non-numeric values decode but fail normalization later.
	raw := decode(t, `{"product_id": "abc", "quantity": null, "price": {}}`)
	assert.True(t, raw.HasID)

	_, ok := Normalize(raw)
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  RawItem
		want Item
		ok   bool
	}{
		{
			name: "valid",
			raw:  RawItem{ProductID: 5, HasID: true, Quantity: 3, HasQty: true, Name: "Milk"},
			want: Item{ProductID: 5, Quantity: 3, Name: "Milk", Price: decimal.Zero},
			ok:   true,
		},
		{
			name: "missing id",
			raw:  RawItem{Quantity: 1, HasQty: true},
			ok:   false,
		},
		{
			name: "zero id",
			raw:  rawItem(0, 1),
			ok:   false,
		},
		{
			name: "negative id",
			raw:  rawItem(-4, 1),
			ok:   false,
		},
		{
			name: "fractional id",
			raw:  rawItem(1.5, 1),
			ok:   false,
		},
		{
			name: "quantity defaults to one",
			raw:  RawItem{ProductID: 5, HasID: true},
			want: Item{ProductID: 5, Quantity: 1, Price: decimal.Zero},
			ok:   true,
		},
		{
			name: "zero quantity defaults to one",
			raw:  rawItem(5, 0),
			want: Item{ProductID: 5, Quantity: 1, Price: decimal.Zero},
			ok:   true,
		},
		{
			name: "negative price clamps to zero",
			raw:  RawItem{ProductID: 5, HasID: true, Price: decimal.NewFromInt(-2), HasPrice: true},
			want: Item{ProductID: 5, Quantity: 1, Price: decimal.Zero},
			ok:   true,
		},
		{
			name: "price kept",
			raw:  RawItem{ProductID: 5, HasID: true, Price: decimal.RequireFromString("2.49"), HasPrice: true},
			want: Item{ProductID: 5, Quantity: 1, Price: decimal.RequireFromString("2.49")},
			ok:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want.ProductID, got.ProductID)
				assert.Equal(t, tt.want.Quantity, got.Quantity)
				assert.Equal(t, tt.want.Name, got.Name)
				assert.True(t, tt.want.Price.Equal(got.Price), "price %s != %s", tt.want.Price, got.Price)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	// Re-normalizing an already valid item changes nothing.
	first, ok := Normalize(RawItem{ProductID: 9, HasID: true, Quantity: 4, HasQty: true, Name: "Eggs"})
	require.True(t, ok)

	second, ok := Normalize(RawItem{
		ProductID: float64(first.ProductID),
		HasID:     true,
		Quantity:  float64(first.Quantity),
		HasQty:    true,
		Name:      first.Name,
		Price:     first.Price,
		HasPrice:  true,
	})
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestCart_SetItemsDropsInvalid(t *testing.T) {
	c := New()
	c.SetItems([]RawItem{
		rawItem(1, 2),
		{Quantity: 1, HasQty: true}, // no id
		rawItem(-3, 1),
		rawItem(2, 1),
	})

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, int64(2), items[1].ProductID)
}

func TestCart_SetItemsMergesDuplicateProducts(t *testing.T) {
	c := New()
	first := rawItem(7, 2)
	first.Name = "Oat Milk"
	first.Price = decimal.NewFromFloat(3.49)
	first.HasPrice = true
	second := rawItem(7, 3)
	second.Name = "Oat Milk 1L"
	c.SetItems([]RawItem{
		first,
		rawItem(2, 1),
		second,
	})

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(7), items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "Oat Milk", items[0].Name)
	assert.True(t, decimal.NewFromFloat(3.49).Equal(items[0].Price))
	assert.Equal(t, int64(2), items[1].ProductID)
}

func TestCart_AddMergesQuantities(t *testing.T) {
	c := New()
	c.Add(rawItem(1, 2))
	c.Add(rawItem(2, 1))
	c.Add(rawItem(1, 3))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestCart_AddInvalidIsNoop(t *testing.T) {
	c := New()
	c.Add(RawItem{Quantity: 2, HasQty: true})
	assert.Zero(t, c.Len())
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New()
	c.Add(rawItem(1, 2))

	c.UpdateQuantity(1, 7)
	assert.Equal(t, 7, c.Items()[0].Quantity)

	// Quantity below 1 removes the line.
	c.UpdateQuantity(1, 0)
	assert.Zero(t, c.Len())

	// Absent product is a no-op.
	c.UpdateQuantity(42, 3)
	assert.Zero(t, c.Len())
}

func TestCart_UpdateQuantityBoundary(t *testing.T) {
	c := New()
	c.Add(rawItem(1, 5))

	// Exactly 1 keeps the line.
	c.UpdateQuantity(1, 1)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Items()[0].Quantity)

	// Negative removes.
	c.UpdateQuantity(1, -2)
	assert.Zero(t, c.Len())
}

func TestCart_Remove(t *testing.T) {
	c := New()
	c.Add(rawItem(1, 1))
	c.Add(rawItem(2, 1))

	c.Remove(1)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ProductID)

	c.Remove(99)
	assert.Equal(t, 1, c.Len())
}

func TestCart_Clear(t *testing.T) {
	c := New()
	c.Add(rawItem(1, 1))
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCart_Restore(t *testing.T) {
	c := New()
	c.Add(rawItem(9, 9))

	snapshot := []Item{
		{ProductID: 1, Quantity: 2, Name: "Bread", Price: decimal.RequireFromString("1.99")},
		{ProductID: 2, Quantity: 1, Name: "Butter", Price: decimal.RequireFromString("3.50")},
	}
	c.Restore(snapshot)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, snapshot, items)

	// The cart owns its copy.
	snapshot[0].Quantity = 99
	assert.Equal(t, 2, c.Items()[0].Quantity)
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := New()
	c.Add(rawItem(1, 1))

	items := c.Items()
	items[0].Quantity = 50
	assert.Equal(t, 1, c.Items()[0].Quantity)
}
