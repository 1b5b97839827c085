package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/grocerly/checkout/internal/domain/checkout"
	"github.com/grocerly/checkout/internal/domain/invoice"
)

var _ checkout.InvoiceGateway = (*InvoiceClient)(nil)

// InvoiceClient consumes the upstream invoice resource.
type InvoiceClient struct {
	c *Client
}

// NewInvoiceClient wraps the shared client.
func NewInvoiceClient(c *Client) *InvoiceClient {
	return &InvoiceClient{c: c}
}

type createInvoicePayload struct {
	PaymentMethod   string                   `json:"paymentMethod"`
	DeliveryAddress checkout.DeliveryAddress `json:"deliveryAddress"`
}

type createInvoiceResponse struct {
	InvoiceID int64 `json:"invoice_id"`
}

// Create creates an empty invoice and returns its server-assigned id.
// Retrying a failed Create can duplicate invoices upstream; callers must
// treat it as non-idempotent.
func (ic *InvoiceClient) Create(ctx context.Context, req checkout.CreateInvoiceRequest) (int64, error) {
	var resp createInvoiceResponse
	err := ic.c.do(ctx, http.MethodPost, "/invoices/", createInvoicePayload{
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
	}, &resp)
	if err != nil {
		return 0, err
	}
	if resp.InvoiceID == 0 {
		return 0, errors.New("create invoice: response missing invoice_id")
	}
	return resp.InvoiceID, nil
}

type addItemPayload struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type itemResponse struct {
	Item invoice.Item `json:"item"`
}

// AddItem attaches one product line to the invoice.
func (ic *InvoiceClient) AddItem(ctx context.Context, invoiceID, productID int64, quantity int) (*invoice.Item, error) {
	var resp itemResponse
	path := fmt.Sprintf("/invoices/%d/items", invoiceID)
	err := ic.c.do(ctx, http.MethodPost, path, addItemPayload{
		ProductID: productID,
		Quantity:  quantity,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

type updateItemPayload struct {
	Quantity int `json:"quantity"`
}

// UpdateItem replaces the quantity of an attached line.
func (ic *InvoiceClient) UpdateItem(ctx context.Context, invoiceID, itemID int64, quantity int) (*invoice.Item, error) {
	var resp itemResponse
	path := fmt.Sprintf("/invoices/%d/items/%d", invoiceID, itemID)
	err := ic.c.do(ctx, http.MethodPatch, path, updateItemPayload{Quantity: quantity}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// DeleteItem detaches a line from the invoice.
func (ic *InvoiceClient) DeleteItem(ctx context.Context, invoiceID, itemID int64) error {
	path := fmt.Sprintf("/invoices/%d/items/%d", invoiceID, itemID)
	return ic.c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetByID fetches the full invoice projection. This is the session's only
// source of authoritative totals and payment status.
func (ic *InvoiceClient) GetByID(ctx context.Context, invoiceID int64) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	path := fmt.Sprintf("/invoices/%d", invoiceID)
	if err := ic.c.do(ctx, http.MethodGet, path, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListMine fetches the caller's invoices, most recent first.
func (ic *InvoiceClient) ListMine(ctx context.Context) ([]invoice.Invoice, error) {
	var list []invoice.Invoice
	if err := ic.c.do(ctx, http.MethodGet, "/invoices/me", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
