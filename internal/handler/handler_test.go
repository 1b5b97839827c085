package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/checkout/internal/domain/checkout"
	"github.com/grocerly/checkout/internal/domain/invoice"
	"github.com/grocerly/checkout/internal/domain/payment"
	"github.com/grocerly/checkout/internal/gateway"
	"github.com/grocerly/checkout/internal/session"
	"github.com/grocerly/checkout/internal/storage/memory"
)

// --- Mock implementations ---

type stubInvoiceGateway struct {
	createID  int64
	createErr error
	lastToken string

	byID   map[int64]*invoice.Invoice
	getErr error

	mine    []invoice.Invoice
	mineErr error
}

func (s *stubInvoiceGateway) Create(ctx context.Context, _ checkout.CreateInvoiceRequest) (int64, error) {
	s.lastToken = gateway.ContextToken(ctx)
	if s.createErr != nil {
		return 0, s.createErr
	}
	return s.createID, nil
}

func (s *stubInvoiceGateway) AddItem(_ context.Context, invoiceID, productID int64, quantity int) (*invoice.Item, error) {
	return &invoice.Item{InvoiceID: invoiceID, ProductID: productID, Quantity: quantity}, nil
}

func (s *stubInvoiceGateway) GetByID(_ context.Context, invoiceID int64) (*invoice.Invoice, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	inv, ok := s.byID[invoiceID]
	if !ok {
		return nil, errors.Errorf("invoice %d not found", invoiceID)
	}
	cp := *inv
	return &cp, nil
}

func (s *stubInvoiceGateway) ListMine(_ context.Context) ([]invoice.Invoice, error) {
	return s.mine, s.mineErr
}

type stubPaymentGateway struct {
	order      *payment.PayPalOrder
	createErr  error
	capture    *payment.CaptureResult
	captureErr error
}

func (s *stubPaymentGateway) CreateOrder(_ context.Context, _ int64) (*payment.PayPalOrder, error) {
	return s.order, s.createErr
}

func (s *stubPaymentGateway) CaptureOrder(_ context.Context, _ int64, _ string) (*payment.CaptureResult, error) {
	return s.capture, s.captureErr
}

type stubProductLookup struct {
	product *gateway.Product
	err     error
	calls   int
}

func (s *stubProductLookup) GetByBarcode(_ context.Context, _ string) (*gateway.Product, error) {
	s.calls++
	return s.product, s.err
}

type stubScreen struct{ contains bool }

func (s *stubScreen) MayContain(string) bool { return s.contains }

// --- Harness ---

type harness struct {
	srv      *httptest.Server
	invoices *stubInvoiceGateway
	payments *stubPaymentGateway
	products *stubProductLookup
	screen   *stubScreen
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		invoices: &stubInvoiceGateway{
			createID: 101,
			byID:     map[int64]*invoice.Invoice{101: {InvoiceID: 101, PaymentStatus: invoice.StatusUnpaid}},
		},
		payments: &stubPaymentGateway{
			order:   &payment.PayPalOrder{OrderID: "PO1", ApproveURL: "https://paypal.test/approve"},
			capture: &payment.CaptureResult{CaptureStatus: "COMPLETED", CaptureID: "CAP1"},
		},
		products: &stubProductLookup{
			product: &gateway.Product{ID: 3, Name: "Whole Milk", Price: decimal.RequireFromString("2.49"), Barcode: "4006381333931"},
		},
		screen: &stubScreen{contains: true},
	}

	mgr := session.NewManager(h.invoices, h.payments, memory.NewCartRepository(), time.Hour)
	h.srv = httptest.NewServer(New(mgr, h.products, h.screen).Routes())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.srv.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func items(body map[string]any) []any {
	list, _ := body["items"].([]any)
	return list
}

// --- Session lifecycle ---

func TestCreateAndGetSession(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, body := h.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "paypal", body["payment_method"])
	assert.Empty(t, items(body))
}

func TestGetSession_Unknown(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/sessions/0c6d8f1e-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
}

func TestGetSession_MalformedID(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndSession(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, _ := h.do(t, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- Cart endpoints ---

func TestCart_AddAndGet(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items",
		map[string]any{"product_id": 1, "quantity": 2, "name": "Bread", "price": 1.99})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, items(body), 1)

	// Adding the same product merges quantities.
	_, body = h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items",
		map[string]any{"product_id": 1, "quantity": 3})
	require.Len(t, items(body), 1)
	line := items(body)[0].(map[string]any)
	assert.Equal(t, float64(5), line["quantity"])
	assert.Equal(t, "Bread", line["name"])
}

func TestCart_SetReplacesAndDropsInvalid(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, body := h.do(t, http.MethodPut, "/sessions/"+id+"/cart", map[string]any{
		"items": []map[string]any{
			{"product_id": 1, "quantity": 1},
			{"quantity": 5},           // no id: dropped
			{"id": 2, "quantity": 2},  // bare id accepted
			{"product_id": -7},        // invalid id: dropped
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, items(body), 2)
}

func TestCart_UpdateQuantityAndRemove(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1, "quantity": 2})

	_, body := h.do(t, http.MethodPatch, "/sessions/"+id+"/cart/items/1", map[string]any{"quantity": 9})
	require.Len(t, items(body), 1)
	assert.Equal(t, float64(9), items(body)[0].(map[string]any)["quantity"])

	// Quantity zero removes the line.
	_, body = h.do(t, http.MethodPatch, "/sessions/"+id+"/cart/items/1", map[string]any{"quantity": 0})
	assert.Empty(t, items(body))

	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 2})
	_, body = h.do(t, http.MethodDelete, "/sessions/"+id+"/cart/items/2", nil)
	assert.Empty(t, items(body))
}

func TestCart_InvalidProductIDPath(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, _ := h.do(t, http.MethodPatch, "/sessions/"+id+"/cart/items/zero", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCart_Clear(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})

	_, body := h.do(t, http.MethodDelete, "/sessions/"+id+"/cart", nil)
	assert.Empty(t, items(body))
}

// --- Delivery address and payment method ---

func TestSetDeliveryAddress_Merges(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	h.do(t, http.MethodPut, "/sessions/"+id+"/delivery-address",
		map[string]any{"fullName": "Dana Shopper", "city": "Springfield"})
	_, body := h.do(t, http.MethodPut, "/sessions/"+id+"/delivery-address",
		map[string]any{"city": "Shelbyville"})

	addr := body["delivery_address"].(map[string]any)
	assert.Equal(t, "Dana Shopper", addr["fullName"])
	assert.Equal(t, "Shelbyville", addr["city"])
}

func TestSetPaymentMethod_EmptyFallsBack(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	_, body := h.do(t, http.MethodPut, "/sessions/"+id+"/payment-method",
		map[string]any{"payment_method": "card"})
	assert.Equal(t, "card", body["payment_method"])

	_, body = h.do(t, http.MethodPut, "/sessions/"+id+"/payment-method",
		map[string]any{"payment_method": ""})
	assert.Equal(t, "paypal", body["payment_method"])
}

// --- Checkout workflow ---

func TestCreateInvoice(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1, "quantity": 2})

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	inv := body["invoice"].(map[string]any)
	assert.Equal(t, float64(101), inv["invoice_id"])
	assert.Equal(t, "unpaid", inv["payment_status"])
}

func TestCreateInvoice_EmptyCart(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "cart is empty", body["error"])
}

func TestCreateInvoice_UpstreamErrorKeepsStatus(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})

	h.invoices.createErr = &gateway.APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		FieldErrors: map[string]string{"zipCode": "zip code is invalid"},
	}

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "zip code is invalid", body["error"])
}

func TestCreateInvoice_TransportErrorIs502(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})

	h.invoices.createErr = errors.New("connection refused")

	resp, _ := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCreatePayPalOrder(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})
	h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/order", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	order := body["paypal_order"].(map[string]any)
	assert.Equal(t, "PO1", order["order_id"])
	assert.Equal(t, "https://paypal.test/approve", order["approve_url"])
	assert.NotNil(t, body["invoice"])
}

func TestCreatePayPalOrder_NoInvoice(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/order", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invoice_id is required", body["error"])
}

func TestCapture_PaidClearsCart(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})
	h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)
	h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/order", nil)

	h.invoices.byID[101].PaymentStatus = invoice.StatusPaid

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/capture", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	capture := body["capture"].(map[string]any)
	assert.Equal(t, "CAP1", capture["capture_id"])
	assert.Empty(t, items(body), "paid capture clears the cart")
}

func TestCapture_PendingKeepsCart(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})
	h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)

	h.invoices.byID[101].PaymentStatus = invoice.StatusPending
	h.payments.capture = &payment.CaptureResult{CaptureStatus: "PENDING"}

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/capture",
		map[string]any{"invoice_id": 101})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, items(body), 1)
}

func TestRunCheckout_AutoCapture(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})

	h.invoices.byID[101].PaymentStatus = invoice.StatusPaid

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/run",
		map[string]any{"auto_capture": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NotNil(t, body["invoice"])
	assert.NotNil(t, body["paypal_order"])
	assert.NotNil(t, body["capture"])
	assert.Empty(t, items(body))
}

func TestRunCheckout_WithoutAutoCapture(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/paypal/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["paypal_order"])
	assert.Nil(t, body["capture"])
	assert.Len(t, items(body), 1)
}

func TestResetCheckout(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})
	h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/invoice", nil)

	resp, _ := h.do(t, http.MethodPost, "/sessions/"+id+"/checkout/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := h.do(t, http.MethodGet, "/sessions/"+id, nil)
	assert.Nil(t, body["invoice"])
	assert.Len(t, items(body), 1, "reset keeps the cart")
}

func TestPurchaseHistory(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.invoices.mine = []invoice.Invoice{
		{InvoiceID: 90, PaymentStatus: invoice.StatusPaid},
		{InvoiceID: 91, PaymentStatus: invoice.StatusFailed},
	}

	resp, body := h.do(t, http.MethodGet, "/sessions/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := body["invoices"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, float64(90), list[0].(map[string]any)["invoice_id"])
}

// --- Barcode scan ---

func TestScan_AddsProductToCart(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, body := h.do(t, http.MethodPost, "/sessions/"+id+"/scan",
		map[string]any{"barcode": "4006381333931", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	product := body["product"].(map[string]any)
	assert.Equal(t, "Whole Milk", product["name"])

	require.Len(t, items(body), 1)
	line := items(body)[0].(map[string]any)
	assert.Equal(t, float64(3), line["product_id"])
	assert.Equal(t, float64(2), line["quantity"])
	assert.Equal(t, 2.49, line["price"])
}

func TestScan_DefaultQuantity(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	_, body := h.do(t, http.MethodPost, "/sessions/"+id+"/scan",
		map[string]any{"barcode": "4006381333931"})
	line := items(body)[0].(map[string]any)
	assert.Equal(t, float64(1), line["quantity"])
}

func TestScan_ScreenRejectsWithoutUpstreamCall(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.screen.contains = false

	resp, _ := h.do(t, http.MethodPost, "/sessions/"+id+"/scan",
		map[string]any{"barcode": "0000000000000"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, h.products.calls, "screened barcodes never reach the catalog")
}

func TestScan_UpstreamNotFound(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.products.err = gateway.ErrProductNotFound
	h.products.product = nil

	resp, _ := h.do(t, http.MethodPost, "/sessions/"+id+"/scan",
		map[string]any{"barcode": "4006381333931"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, h.products.calls)
}

func TestScan_EmptyBarcode(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	resp, _ := h.do(t, http.MethodPost, "/sessions/"+id+"/scan", map[string]any{"barcode": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- Token forwarding ---

func TestBearerTokenForwarded(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.do(t, http.MethodPost, "/sessions/"+id+"/cart/items", map[string]any{"product_id": 1})

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/sessions/"+id+"/checkout/invoice", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer shopper-token")

	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "shopper-token", h.invoices.lastToken)
}
