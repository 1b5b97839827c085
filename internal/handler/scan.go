package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/grocerly/checkout/internal/domain/cart"
	"github.com/grocerly/checkout/internal/gateway"
)

type scanRequest struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

type scanResponse struct {
	OK      bool             `json:"ok"`
	Product *gateway.Product `json:"product"`
	Items   []cartItemJSON   `json:"items"`
}

// scanBarcode resolves a scanned barcode to a catalog product and merges it
// into the session cart. The bloom screen short-circuits barcodes that are
// definitely unknown without an upstream call.
func (h *Handler) scanBarcode(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	var req scanRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code := strings.TrimSpace(req.Barcode)
	if code == "" {
		writeError(w, http.StatusBadRequest, "barcode is required")
		return
	}

	if h.screen != nil && !h.screen.MayContain(code) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	product, err := h.products.GetByBarcode(r.Context(), code)
	if err != nil {
		if errors.Is(err, gateway.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("barcode lookup", zap.String("barcode", code), zap.Error(err))
		writeError(w, http.StatusBadGateway, "product lookup failed")
		return
	}

	quantity := float64(req.Quantity)
	sess.AddToCart(cart.RawItem{
		ProductID: float64(product.ID),
		HasID:     true,
		Quantity:  quantity,
		HasQty:    req.Quantity != 0,
		Name:      product.Name,
		Price:     product.Price,
		HasPrice:  true,
	})
	h.persistCart(r.Context(), id)

	writeJSON(w, http.StatusOK, scanResponse{
		OK:      true,
		Product: product,
		Items:   cartItemsJSON(sess.CartItems()),
	})
}
