package gateway

import (
	"context"
	"net/http"

	"github.com/grocerly/checkout/internal/domain/checkout"
	"github.com/grocerly/checkout/internal/domain/payment"
)

var _ checkout.PaymentGateway = (*PaymentClient)(nil)

// PaymentClient consumes the upstream PayPal wrapper. The wrapper owns all
// provider protocol details; this client only sees the create/capture
// two-phase surface.
type PaymentClient struct {
	c *Client
}

// NewPaymentClient wraps the shared client.
func NewPaymentClient(c *Client) *PaymentClient {
	return &PaymentClient{c: c}
}

type createOrderPayload struct {
	InvoiceID int64 `json:"invoice_id"`
}

// CreateOrder creates a provider order for the invoice and returns the order
// id plus the buyer approval URL.
func (pc *PaymentClient) CreateOrder(ctx context.Context, invoiceID int64) (*payment.PayPalOrder, error) {
	var order payment.PayPalOrder
	err := pc.c.do(ctx, http.MethodPost, "/payments/paypal/create-order",
		createOrderPayload{InvoiceID: invoiceID}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type captureOrderPayload struct {
	InvoiceID int64  `json:"invoice_id"`
	OrderID   string `json:"order_id,omitempty"`
}

// CaptureOrder captures the provider order. An empty orderID is omitted from
// the payload; the backend then resolves it from the invoice.
func (pc *PaymentClient) CaptureOrder(ctx context.Context, invoiceID int64, orderID string) (*payment.CaptureResult, error) {
	var result payment.CaptureResult
	err := pc.c.do(ctx, http.MethodPost, "/payments/paypal/capture-order",
		captureOrderPayload{InvoiceID: invoiceID, OrderID: orderID}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
