package cart

import (
	"math"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Item is a single cart line: one entry per product, quantity >= 1, unit
// price snapshotted at add time.
type Item struct {
	ProductID int64
	Quantity  int
	Name      string
	Price     decimal.Decimal
}

// RawItem is the loosely-typed item shape accepted from clients. Product
// identifiers arrive under several keys (product_id, productId or id) and
// numeric fields may be sent as JSON numbers or strings.
type RawItem struct {
	ProductID float64
	HasID     bool
	Quantity  float64
	HasQty    bool
	Name      string
	Price     decimal.Decimal
	HasPrice  bool

	idRank int
}

// DecodeRawItem decodes one JSON object into a RawItem. Unknown keys are
// skipped so clients can send their full product projection.
func DecodeRawItem(d *jx.Decoder) (RawItem, error) {
	var raw RawItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id", "productId", "id":
			// Key precedence is product_id, then productId, then id:
			// "id" is only trusted when no explicit product key came.
			rank := idKeyRank(key)
			if raw.HasID && rank <= raw.idRank {
				return d.Skip()
			}
			v, err := decodeNumber(d)
			if err != nil {
				return err
			}
			raw.ProductID = v
			raw.HasID = true
			raw.idRank = rank
		case "quantity":
			v, err := decodeNumber(d)
			if err != nil {
				return err
			}
			raw.Quantity = v
			raw.HasQty = true
		case "name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			raw.Name = v
		case "price":
			v, err := decodeNumber(d)
			if err != nil {
				return err
			}
			raw.Price = decimal.NewFromFloat(v)
			raw.HasPrice = true
		default:
			return d.Skip()
		}
		return nil
	})
	return raw, err
}

func idKeyRank(key string) int {
	switch key {
	case "product_id":
		return 3
	case "productId":
		return 2
	default: // "id"
		return 1
	}
}

// decodeNumber reads a JSON number or a numeric string. Anything else
// (null, objects, non-numeric strings) decodes to NaN so normalization can
// reject or default it.
func decodeNumber(d *jx.Decoder) (float64, error) {
	switch d.Next() {
	case jx.Number:
		return d.Float64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		dec, err := decimal.NewFromString(s)
		if err != nil {
			return math.NaN(), nil
		}
		return dec.InexactFloat64(), nil
	default:
		if err := d.Skip(); err != nil {
			return 0, err
		}
		return math.NaN(), nil
	}
}

// Normalize coerces a RawItem into a valid Item. It returns ok=false when
// the product identifier is missing or not a positive integer; such entries
// are dropped by the caller, never error-signaled.
//
// Quantity defaults to 1 when absent, non-finite or below 1. Price defaults
// to zero when absent or negative.
func Normalize(raw RawItem) (Item, bool) {
	if !raw.HasID {
		return Item{}, false
	}
	id := raw.ProductID
	if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) || id <= 0 {
		return Item{}, false
	}

	qty := 1
	if raw.HasQty && !math.IsNaN(raw.Quantity) && !math.IsInf(raw.Quantity, 0) && raw.Quantity >= 1 {
		qty = int(raw.Quantity)
	}

	price := decimal.Zero
	if raw.HasPrice && !raw.Price.IsNegative() {
		price = raw.Price
	}

	return Item{
		ProductID: int64(id),
		Quantity:  qty,
		Name:      raw.Name,
		Price:     price,
	}, true
}

// NormalizeAll normalizes a batch of raw items, silently dropping entries
// without a valid positive-integer product identifier. Entries sharing a
// product identifier collapse into one line: quantities are summed and the
// first occurrence keeps its name and price, matching Cart.Add.
func NormalizeAll(raws []RawItem) []Item {
	items := make([]Item, 0, len(raws))
	index := make(map[int64]int, len(raws))
	for _, raw := range raws {
		item, ok := Normalize(raw)
		if !ok {
			continue
		}
		if i, seen := index[item.ProductID]; seen {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(items)
		items = append(items, item)
	}
	return items
}
