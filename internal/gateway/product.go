package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when no product matches a barcode.
var ErrProductNotFound = errors.New("product not found")

// Product is the catalog projection used by the barcode scan flow.
type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Category   string          `json:"category"`
	Price      decimal.Decimal `json:"price"`
	Barcode    string          `json:"barcode"`
	PictureURL string          `json:"picture_url"`
}

// ProductClient consumes the upstream product catalog.
type ProductClient struct {
	c *Client
}

// NewProductClient wraps the shared client.
func NewProductClient(c *Client) *ProductClient {
	return &ProductClient{c: c}
}

// GetByBarcode resolves a scanned barcode to a product. It returns
// ErrProductNotFound on an upstream 404.
func (pc *ProductClient) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	code := strings.TrimSpace(barcode)
	if code == "" {
		return nil, errors.New("barcode is required")
	}

	var p Product
	err := pc.c.do(ctx, http.MethodGet, "/products/barcode/"+url.PathEscape(code), nil, &p)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}
