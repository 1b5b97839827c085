// Package invoice defines the client-side projection of the upstream
// invoice resource. The upstream backend is the single source of truth for
// totals and payment status; this projection is only ever populated by
// re-fetching it, never computed locally.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the invoice payment lifecycle tag as reported by the upstream
// backend.
type Status string

const (
	// StatusUnpaid marks a freshly created invoice.
	StatusUnpaid Status = "unpaid"
	// StatusPending marks an invoice with a created but uncaptured payment order.
	StatusPending Status = "pending"
	// StatusPaid is the terminal success status. It is the only status that
	// permits clearing the originating cart.
	StatusPaid Status = "paid"
	// StatusFailed marks an invoice whose capture was rejected upstream.
	StatusFailed Status = "failed"
)

// Invoice is the upstream invoice projection observed by the checkout
// session.
type Invoice struct {
	InvoiceID       int64           `json:"invoice_id"`
	PaymentStatus   Status          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ItemCount       int             `json:"item_count"`
	CreatedAt       time.Time       `json:"created_at"`
	PayPalOrderID   string          `json:"paypal_order_id,omitempty"`
	PayPalCaptureID string          `json:"paypal_capture_id,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

// Paid reports whether the invoice reached the terminal paid status.
func (i *Invoice) Paid() bool {
	return i != nil && i.PaymentStatus == StatusPaid
}

// Item is one attached invoice line as returned by the add-item call.
type Item struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
