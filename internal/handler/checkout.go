package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/grocerly/checkout/internal/domain/checkout"
	"github.com/grocerly/checkout/internal/domain/payment"
	"github.com/grocerly/checkout/internal/gateway"
)

type sessionResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"session_id"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	id, _ := h.sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, sessionResponse{OK: true, SessionID: id})
}

type sessionStateResponse struct {
	OK              bool                     `json:"ok"`
	Items           []cartItemJSON           `json:"items"`
	DeliveryAddress checkout.DeliveryAddress `json:"delivery_address"`
	PaymentMethod   string                   `json:"payment_method"`
	Invoice         *invoiceJSON             `json:"invoice,omitempty"`
	PayPalOrder     *payment.PayPalOrder     `json:"paypal_order,omitempty"`
	Loading         bool                     `json:"loading"`
	Error           string                   `json:"error,omitempty"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionStateResponse{
		OK:              true,
		Items:           cartItemsJSON(sess.CartItems()),
		DeliveryAddress: sess.DeliveryAddress(),
		PaymentMethod:   sess.PaymentMethod(),
		Invoice:         toInvoiceJSON(sess.Invoice()),
		PayPalOrder:     sess.PayPalOrder(),
		Loading:         sess.Loading(),
		Error:           sess.LastError(),
	})
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), r.PathValue("sessionID")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) setDeliveryAddress(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	var addr checkout.DeliveryAddress
	if err := decodeJSONBody(r, &addr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.SetDeliveryAddress(addr)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "delivery_address": sess.DeliveryAddress()})
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	var req paymentMethodRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.SetPaymentMethod(req.PaymentMethod)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "payment_method": sess.PaymentMethod()})
}

type invoiceResponse struct {
	OK      bool         `json:"ok"`
	Invoice *invoiceJSON `json:"invoice"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	inv, err := sess.CreateInvoiceFromCart(r.Context())
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoiceResponse{OK: true, Invoice: toInvoiceJSON(inv)})
}

type invoiceIDRequest struct {
	InvoiceID int64 `json:"invoice_id"`
}

type paypalOrderResponse struct {
	OK          bool                 `json:"ok"`
	PayPalOrder *payment.PayPalOrder `json:"paypal_order"`
	Invoice     *invoiceJSON         `json:"invoice"`
}

func (h *Handler) createPayPalOrder(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	var req invoiceIDRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := sess.CreatePayPalOrder(r.Context(), req.InvoiceID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paypalOrderResponse{
		OK:          true,
		PayPalOrder: order,
		Invoice:     toInvoiceJSON(sess.Invoice()),
	})
}

type captureRequest struct {
	InvoiceID int64  `json:"invoice_id"`
	OrderID   string `json:"order_id"`
}

type captureResponse struct {
	OK      bool                   `json:"ok"`
	Capture *payment.CaptureResult `json:"capture"`
	Invoice *invoiceJSON           `json:"invoice"`
	Items   []cartItemJSON         `json:"items"`
}

func (h *Handler) capturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	var req captureRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	capture, err := sess.CapturePayPalOrder(r.Context(), checkout.CaptureParams{
		InvoiceID: req.InvoiceID,
		OrderID:   req.OrderID,
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	// The capture step is the one place the payment subsystem touches the
	// cart; persist the (possibly cleared) snapshot.
	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, captureResponse{
		OK:      true,
		Capture: capture,
		Invoice: toInvoiceJSON(sess.Invoice()),
		Items:   cartItemsJSON(sess.CartItems()),
	})
}

type runCheckoutRequest struct {
	AutoCapture bool `json:"auto_capture"`
}

type runCheckoutResponse struct {
	OK          bool                   `json:"ok"`
	Invoice     *invoiceJSON           `json:"invoice"`
	PayPalOrder *payment.PayPalOrder   `json:"paypal_order,omitempty"`
	Capture     *payment.CaptureResult `json:"capture,omitempty"`
	Items       []cartItemJSON         `json:"items"`
}

func (h *Handler) runCheckout(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	var req runCheckoutRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := sess.RunPayPalCheckout(r.Context(), req.AutoCapture)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, runCheckoutResponse{
		OK:          true,
		Invoice:     toInvoiceJSON(result.Invoice),
		PayPalOrder: result.Order,
		Capture:     result.Capture,
		Items:       cartItemsJSON(sess.CartItems()),
	})
}

func (h *Handler) resetCheckout(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}
	sess.ResetCheckoutState()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type historyResponse struct {
	OK       bool          `json:"ok"`
	Invoices []invoiceJSON `json:"invoices"`
}

func (h *Handler) purchaseHistory(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	history, err := sess.FetchPurchaseHistory(r.Context())
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{OK: true, Invoices: invoicesJSON(history)})
}

// writeCheckoutError maps session operation failures to HTTP statuses:
// local validation failures are 400, upstream envelope errors keep their
// status, everything else is 502 (the upstream call failed in transit).
func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrInvoiceIDRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.StatusCode, checkout.FormatError(err, "upstream request failed"))
		return
	}

	writeError(w, http.StatusBadGateway, checkout.FormatError(err, "upstream request failed"))
}
