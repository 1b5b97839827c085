package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/grocerly/checkout/internal/domain/cart"
	"github.com/grocerly/checkout/internal/domain/invoice"
)

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

// decodeJSONBody decodes the request body into v. An empty body is not an
// error: v keeps its zero value, since several checkout endpoints accept an
// optional body.
func decodeJSONBody(r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// cartItemJSON is the wire shape of one cart line. Prices are emitted as
// floats to match the upstream backend's JSON.
type cartItemJSON struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

func cartItemsJSON(items []cart.Item) []cartItemJSON {
	out := make([]cartItemJSON, len(items))
	for i, item := range items {
		out[i] = cartItemJSON{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Name:      item.Name,
			Price:     item.Price.InexactFloat64(),
		}
	}
	return out
}

type invoiceJSON struct {
	InvoiceID       int64      `json:"invoice_id"`
	PaymentStatus   string     `json:"payment_status"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	TotalAmount     float64    `json:"total_amount"`
	ItemCount       int        `json:"item_count"`
	CreatedAt       time.Time  `json:"created_at"`
	PayPalOrderID   string     `json:"paypal_order_id,omitempty"`
	PayPalCaptureID string     `json:"paypal_capture_id,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

func toInvoiceJSON(inv *invoice.Invoice) *invoiceJSON {
	if inv == nil {
		return nil
	}
	return &invoiceJSON{
		InvoiceID:       inv.InvoiceID,
		PaymentStatus:   string(inv.PaymentStatus),
		PaymentMethod:   inv.PaymentMethod,
		TotalAmount:     inv.TotalAmount.InexactFloat64(),
		ItemCount:       inv.ItemCount,
		CreatedAt:       inv.CreatedAt,
		PayPalOrderID:   inv.PayPalOrderID,
		PayPalCaptureID: inv.PayPalCaptureID,
		PaidAt:          inv.PaidAt,
	}
}

func invoicesJSON(list []invoice.Invoice) []invoiceJSON {
	out := make([]invoiceJSON, len(list))
	for i := range list {
		out[i] = *toInvoiceJSON(&list[i])
	}
	return out
}
