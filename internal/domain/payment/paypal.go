// Package payment holds the client-side projections of the upstream payment
// provider's order and capture objects. Both are ephemeral: they live for
// the duration of one checkout session and are never persisted.
package payment

// PayPalOrder is the provider order created for an invoice. ApproveURL is
// opened in an external browser for buyer approval; OrderID is consumed once
// by the capture step.
type PayPalOrder struct {
	OrderID      string `json:"order_id"`
	OrderStatus  string `json:"order_status,omitempty"`
	ApproveURL   string `json:"approve_url"`
	CurrencyCode string `json:"currency_code,omitempty"`
	AmountValue  string `json:"amount_value,omitempty"`
}

// CaptureResult is the outcome of a capture-order call. A transport-level
// success does not imply settlement: callers must re-fetch the invoice and
// check its payment status instead of trusting this value.
type CaptureResult struct {
	CaptureStatus  string `json:"capture_status"`
	CaptureID      string `json:"capture_id,omitempty"`
	CapturedAmount string `json:"captured_amount,omitempty"`
	CurrencyCode   string `json:"currency_code,omitempty"`
}
