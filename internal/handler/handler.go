// Package handler exposes the checkout BFF HTTP surface: session lifecycle,
// cart mutations, the checkout workflow, purchase history, and the barcode
// scan flow. Responses use the same uniform result shape as the checkout
// session: {"ok": true, ...} on success, {"ok": false, "error": msg} on
// failure.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/grocerly/checkout/internal/domain/checkout"
	"github.com/grocerly/checkout/internal/gateway"
	"github.com/grocerly/checkout/internal/session"
)

// ProductLookup resolves scanned barcodes against the upstream catalog.
type ProductLookup interface {
	GetByBarcode(ctx context.Context, barcode string) (*gateway.Product, error)
}

// BarcodeScreen pre-filters scans before they reach the upstream catalog.
type BarcodeScreen interface {
	MayContain(code string) bool
}

// Handler routes BFF requests to checkout sessions.
type Handler struct {
	sessions *session.Manager
	products ProductLookup
	screen   BarcodeScreen
}

// New constructs a Handler. screen may be nil, in which case every scan goes
// upstream.
func New(sessions *session.Manager, products ProductLookup, screen BarcodeScreen) *Handler {
	return &Handler{
		sessions: sessions,
		products: products,
		screen:   screen,
	}
}

// Routes returns the BFF route table. The caller wraps it with the shared
// middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions/{sessionID}", h.getSession)
	mux.HandleFunc("DELETE /sessions/{sessionID}", h.endSession)

	mux.HandleFunc("GET /sessions/{sessionID}/cart", h.getCart)
	mux.HandleFunc("PUT /sessions/{sessionID}/cart", h.setCart)
	mux.HandleFunc("DELETE /sessions/{sessionID}/cart", h.clearCart)
	mux.HandleFunc("POST /sessions/{sessionID}/cart/items", h.addCartItem)
	mux.HandleFunc("PATCH /sessions/{sessionID}/cart/items/{productID}", h.updateCartItem)
	mux.HandleFunc("DELETE /sessions/{sessionID}/cart/items/{productID}", h.removeCartItem)

	mux.HandleFunc("PUT /sessions/{sessionID}/delivery-address", h.setDeliveryAddress)
	mux.HandleFunc("PUT /sessions/{sessionID}/payment-method", h.setPaymentMethod)

	mux.HandleFunc("POST /sessions/{sessionID}/checkout/invoice", h.createInvoice)
	mux.HandleFunc("POST /sessions/{sessionID}/checkout/paypal/order", h.createPayPalOrder)
	mux.HandleFunc("POST /sessions/{sessionID}/checkout/paypal/capture", h.capturePayPalOrder)
	mux.HandleFunc("POST /sessions/{sessionID}/checkout/paypal/run", h.runCheckout)
	mux.HandleFunc("POST /sessions/{sessionID}/checkout/reset", h.resetCheckout)

	mux.HandleFunc("GET /sessions/{sessionID}/history", h.purchaseHistory)
	mux.HandleFunc("POST /sessions/{sessionID}/scan", h.scanBarcode)

	// The upstream backend expects the shopper's own bearer token; forward
	// whatever the client presented.
	return forwardBearerToken(mux)
}

// forwardBearerToken stashes the caller's bearer token in the request
// context for the gateway clients to re-attach upstream.
func forwardBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			r = r.WithContext(gateway.WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveSession loads the session named in the URL, writing the error
// response itself when the session cannot be found.
func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) (string, *checkout.Session, bool) {
	id := r.PathValue("sessionID")
	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			zctx.From(r.Context()).Error("resolve session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load session")
		}
		return "", nil, false
	}
	return id, sess, true
}

// persistCart writes the session's cart snapshot through to storage.
// Snapshot persistence is best-effort: a failed write is logged, not
// surfaced, since the live session remains authoritative.
func (h *Handler) persistCart(ctx context.Context, id string) {
	if err := h.sessions.Persist(ctx, id); err != nil {
		zctx.From(ctx).Warn("persist cart snapshot",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
}

func pathProductID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
