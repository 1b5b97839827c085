// Package checkout implements the per-session checkout state machine: it
// turns cart contents into an upstream invoice, attaches line items, and
// drives the payment provider through the create-order/capture-order
// handshake.
//
// A Session is an explicit context object scoped to one checkout session;
// there are no package-level singletons. All state transitions go through
// the session's own methods.
package checkout

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/grocerly/checkout/internal/domain/cart"
	"github.com/grocerly/checkout/internal/domain/invoice"
	"github.com/grocerly/checkout/internal/domain/payment"
)

// Sentinel errors for local validation failures. These are detected before
// any network call is issued.
var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvoiceIDRequired = errors.New("invoice_id is required")
)

// DefaultPaymentMethod is used when the shopper never picked one.
const DefaultPaymentMethod = "paypal"

// DeliveryAddress holds the shipping and contact fields entered by the
// shopper. It is owned exclusively by the session for the duration of one
// checkout.
type DeliveryAddress struct {
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Apartment     string `json:"apartment"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
	DeliveryNotes string `json:"deliveryNotes"`
}

// CreateInvoiceRequest is the payload for the upstream create-invoice call.
type CreateInvoiceRequest struct {
	PaymentMethod   string
	DeliveryAddress DeliveryAddress
}

// InvoiceGateway is the upstream invoice resource the session depends on.
//
// Create is not idempotent: retrying it blindly duplicates invoices, so the
// session never retries on its own.
type InvoiceGateway interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (int64, error)
	AddItem(ctx context.Context, invoiceID, productID int64, quantity int) (*invoice.Item, error)
	GetByID(ctx context.Context, invoiceID int64) (*invoice.Invoice, error)
	ListMine(ctx context.Context) ([]invoice.Invoice, error)
}

// PaymentGateway wraps the upstream payment provider's two-phase API. The
// orderID argument of CaptureOrder may be empty: the backend then resolves
// it server-side from the invoice.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, invoiceID int64) (*payment.PayPalOrder, error)
	CaptureOrder(ctx context.Context, invoiceID int64, orderID string) (*payment.CaptureResult, error)
}

// Session is the checkout orchestrator for a single shopper session. It owns
// the cart, the delivery profile, and the invoice/payment projections.
//
// Methods are safe for concurrent use. The loading and error flags are
// shared across operations; overlapping operations overwrite them
// last-write-wins, which is an accepted limitation of this design. All other
// fields are scoped to their owning operation and do not collide.
type Session struct {
	invoices InvoiceGateway
	payments PaymentGateway

	mu              sync.Mutex
	cart            *cart.Cart
	deliveryAddress DeliveryAddress
	paymentMethod   string

	invoice     *invoice.Invoice
	paypalOrder *payment.PayPalOrder
	history     []invoice.Invoice

	loading bool
	lastErr string
}

// NewSession creates a fresh checkout session with an empty cart and the
// default payment method.
func NewSession(invoices InvoiceGateway, payments PaymentGateway) *Session {
	return &Session{
		invoices:      invoices,
		payments:      payments,
		cart:          cart.New(),
		paymentMethod: DefaultPaymentMethod,
	}
}

// --- Cart operations (local state only, no I/O) ---

// CartItems returns a snapshot of the current cart lines.
func (s *Session) CartItems() []cart.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

// SetCartItems replaces the cart with the normalized raw entries.
func (s *Session) SetCartItems(raws []cart.RawItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.SetItems(raws)
}

// AddToCart merges one raw item into the cart.
func (s *Session) AddToCart(raw cart.RawItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Add(raw)
}

// UpdateCartQuantity sets the exact quantity for a product; quantities below
// 1 remove the line.
func (s *Session) UpdateCartQuantity(productID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.UpdateQuantity(productID, quantity)
}

// RemoveFromCart drops the matching line, if any.
func (s *Session) RemoveFromCart(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Remove(productID)
}

// ClearCart empties the cart.
func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
}

// RestoreCart replaces the cart with a persisted snapshot.
func (s *Session) RestoreCart(items []cart.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Restore(items)
}

// --- Delivery profile ---

// SetDeliveryAddress merges the non-empty fields of addr over the current
// delivery address.
func (s *Session) SetDeliveryAddress(addr DeliveryAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&s.deliveryAddress.FullName, addr.FullName)
	merge(&s.deliveryAddress.Email, addr.Email)
	merge(&s.deliveryAddress.Phone, addr.Phone)
	merge(&s.deliveryAddress.Address, addr.Address)
	merge(&s.deliveryAddress.Apartment, addr.Apartment)
	merge(&s.deliveryAddress.City, addr.City)
	merge(&s.deliveryAddress.State, addr.State)
	merge(&s.deliveryAddress.ZipCode, addr.ZipCode)
	merge(&s.deliveryAddress.DeliveryNotes, addr.DeliveryNotes)
}

// DeliveryAddress returns the current delivery profile.
func (s *Session) DeliveryAddress() DeliveryAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveryAddress
}

// SetPaymentMethod selects the payment method, falling back to the default
// when empty.
func (s *Session) SetPaymentMethod(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if method == "" {
		method = DefaultPaymentMethod
	}
	s.paymentMethod = method
}

// PaymentMethod returns the selected payment method.
func (s *Session) PaymentMethod() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentMethod
}

// --- State accessors ---

// Invoice returns the invoice projection from the last successful mutating
// step, or nil before one exists.
func (s *Session) Invoice() *invoice.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoice
}

// PayPalOrder returns the provider order from the last successful
// create-order call, or nil.
func (s *Session) PayPalOrder() *payment.PayPalOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paypalOrder
}

// PurchaseHistory returns the invoices loaded by FetchPurchaseHistory.
func (s *Session) PurchaseHistory() []invoice.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Loading reports whether a gateway call is in flight. Callers must treat
// true as "do not resubmit".
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the display message of the most recent failed attempt,
// or an empty string. It is cleared at the start of every new attempt.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ResetCheckoutState drops the invoice and provider order projections and
// clears the loading/error flags. The cart is left alone.
func (s *Session) ResetCheckoutState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice = nil
	s.paypalOrder = nil
	s.loading = false
	s.lastErr = ""
}

// --- Checkout operations ---

// CreateInvoiceFromCart creates an upstream invoice from the current cart
// and delivery profile, attaches every cart line with strictly sequential
// add-item calls, and re-fetches the invoice for authoritative totals.
//
// An empty cart fails immediately with ErrEmptyCart and no network call. A
// failed add-item stops further adds; earlier successful adds are not rolled
// back, leaving a partially built invoice upstream. The session does not
// retry or resume such invoices; the partial state is observable by
// comparing the invoice's item count against the cart size.
func (s *Session) CreateInvoiceFromCart(ctx context.Context) (*invoice.Invoice, error) {
	s.mu.Lock()
	items := s.cart.Items()
	if len(items) == 0 {
		s.lastErr = ErrEmptyCart.Error()
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	req := CreateInvoiceRequest{
		PaymentMethod:   s.paymentMethod,
		DeliveryAddress: s.deliveryAddress,
	}
	s.beginAttemptLocked()
	s.mu.Unlock()

	inv, err := s.buildInvoice(ctx, req, items)
	if err != nil {
		return nil, s.fail(err, "failed to create invoice")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice = inv
	s.loading = false
	return inv, nil
}

func (s *Session) buildInvoice(ctx context.Context, req CreateInvoiceRequest, items []cart.Item) (*invoice.Invoice, error) {
	invoiceID, err := s.invoices.Create(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create invoice")
	}

	// Sequential and in cart order: no concurrent add-item calls are issued
	// for a single invoice.
	for _, item := range items {
		if _, err := s.invoices.AddItem(ctx, invoiceID, item.ProductID, item.Quantity); err != nil {
			return nil, errors.Wrapf(err, "add item %d", item.ProductID)
		}
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch invoice")
	}
	return inv, nil
}

// CreatePayPalOrder creates a provider order for the given invoice, or for
// the session's current invoice when invoiceID is zero. On success both the
// provider order and the re-fetched invoice are stored. On failure the
// previous provider order is left unchanged.
func (s *Session) CreatePayPalOrder(ctx context.Context, invoiceID int64) (*payment.PayPalOrder, error) {
	s.mu.Lock()
	id := invoiceID
	if id == 0 && s.invoice != nil {
		id = s.invoice.InvoiceID
	}
	if id == 0 {
		s.lastErr = ErrInvoiceIDRequired.Error()
		s.mu.Unlock()
		return nil, ErrInvoiceIDRequired
	}
	s.beginAttemptLocked()
	s.mu.Unlock()

	order, err := s.payments.CreateOrder(ctx, id)
	if err != nil {
		return nil, s.fail(err, "failed to create PayPal order")
	}

	// The invoice status may already reflect the created order upstream.
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(err, "failed to create PayPal order")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.paypalOrder = order
	s.invoice = inv
	s.loading = false
	return order, nil
}

// CaptureParams identifies the invoice and provider order to capture. Zero
// values resolve from the session's current state.
type CaptureParams struct {
	InvoiceID int64
	OrderID   string
}

// CapturePayPalOrder captures the provider order and re-fetches the invoice.
// The cart is cleared if and only if the refreshed invoice reports the paid
// status, never on the mere transport-level success of the capture call,
// which can complete while the provider still reports a non-paid status.
func (s *Session) CapturePayPalOrder(ctx context.Context, params CaptureParams) (*payment.CaptureResult, error) {
	s.mu.Lock()
	invoiceID := params.InvoiceID
	if invoiceID == 0 && s.invoice != nil {
		invoiceID = s.invoice.InvoiceID
	}
	orderID := params.OrderID
	if orderID == "" && s.paypalOrder != nil {
		orderID = s.paypalOrder.OrderID
	}
	if invoiceID == 0 {
		s.lastErr = ErrInvoiceIDRequired.Error()
		s.mu.Unlock()
		return nil, ErrInvoiceIDRequired
	}
	s.beginAttemptLocked()
	s.mu.Unlock()

	capture, err := s.payments.CaptureOrder(ctx, invoiceID, orderID)
	if err != nil {
		return nil, s.fail(err, "failed to capture PayPal order")
	}

	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, s.fail(err, "failed to capture PayPal order")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice = inv
	s.loading = false
	if inv.Paid() {
		s.cart.Clear()
	}
	return capture, nil
}

// CheckoutResult aggregates the artifacts of a full checkout run.
type CheckoutResult struct {
	Invoice *invoice.Invoice
	Order   *payment.PayPalOrder
	Capture *payment.CaptureResult
}

// RunPayPalCheckout runs create-invoice, then create-order, then (when
// autoCapture is set) capture-order, short-circuiting at the first failed
// step. There are no compensating transactions: a failure leaves the system
// in whatever state the last successful step produced.
func (s *Session) RunPayPalCheckout(ctx context.Context, autoCapture bool) (*CheckoutResult, error) {
	inv, err := s.CreateInvoiceFromCart(ctx)
	if err != nil {
		return nil, err
	}
	result := &CheckoutResult{Invoice: inv}

	order, err := s.CreatePayPalOrder(ctx, inv.InvoiceID)
	if err != nil {
		return result, err
	}
	result.Order = order
	if !autoCapture {
		result.Invoice = s.Invoice()
		return result, nil
	}

	capture, err := s.CapturePayPalOrder(ctx, CaptureParams{
		InvoiceID: inv.InvoiceID,
		OrderID:   order.OrderID,
	})
	if err != nil {
		return result, err
	}
	result.Capture = capture
	result.Invoice = s.Invoice()
	return result, nil
}

// FetchPurchaseHistory loads the caller's invoices. It is independent of the
// checkout state machine and may run concurrently with it; only the
// loading/error flags are shared.
func (s *Session) FetchPurchaseHistory(ctx context.Context) ([]invoice.Invoice, error) {
	s.mu.Lock()
	s.beginAttemptLocked()
	s.mu.Unlock()

	history, err := s.invoices.ListMine(ctx)
	if err != nil {
		return nil, s.fail(err, "failed to load purchase history")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.loading = false
	return history, nil
}

// beginAttemptLocked marks the start of a network attempt: loading on, error
// cleared. Callers must hold s.mu.
func (s *Session) beginAttemptLocked() {
	s.loading = true
	s.lastErr = ""
}

// fail converts a gateway error into the session's display error, resets the
// loading flag, and returns an *OperationError carrying the display message.
func (s *Session) fail(err error, fallback string) error {
	msg := FormatError(err, fallback)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.lastErr = msg
	return &OperationError{Message: msg, Cause: err}
}
