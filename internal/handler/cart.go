package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/grocerly/checkout/internal/domain/cart"
)

type cartResponse struct {
	OK    bool           `json:"ok"`
	Items []cartItemJSON `json:"items"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{OK: true, Items: cartItemsJSON(sess.CartItems())})
}

// setCart replaces the whole cart from {"items": [...]}. Entries without a
// valid product identifier are dropped silently.
func (h *Handler) setCart(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	raws, err := decodeItemsEnvelope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.SetCartItems(raws)
	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, cartResponse{OK: true, Items: cartItemsJSON(sess.CartItems())})
}

// addCartItem merges one raw item into the cart.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	raw, err := decodeRawItemBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.AddToCart(raw)
	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, cartResponse{OK: true, Items: cartItemsJSON(sess.CartItems())})
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem sets the exact quantity for a product line; quantities
// below 1 remove the line.
func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}
	productID, ok := pathProductID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req updateQuantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.UpdateCartQuantity(productID, req.Quantity)
	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, cartResponse{OK: true, Items: cartItemsJSON(sess.CartItems())})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}
	productID, ok := pathProductID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	sess.RemoveFromCart(productID)
	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, cartResponse{OK: true, Items: cartItemsJSON(sess.CartItems())})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	sess.ClearCart()
	h.persistCart(r.Context(), id)
	writeJSON(w, http.StatusOK, cartResponse{OK: true, Items: cartItemsJSON(sess.CartItems())})
}

// decodeItemsEnvelope reads {"items": [raw, ...]} from the request body.
func decodeItemsEnvelope(r *http.Request) ([]cart.RawItem, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var raws []cart.RawItem
	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			raw, err := cart.DecodeRawItem(d)
			if err != nil {
				return err
			}
			raws = append(raws, raw)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return raws, nil
}

// decodeRawItemBody reads a single raw item object from the request body.
func decodeRawItemBody(r *http.Request) (cart.RawItem, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return cart.RawItem{}, err
	}
	return cart.DecodeRawItem(jx.DecodeBytes(body))
}
