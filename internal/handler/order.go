package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/order"
)

type placeOrderRequest struct {
	CouponCode      string  `json:"coupon_code"`
	ShippingAddress *string `json:"shipping_address"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type paymentIntentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// PlaceOrder serves POST /orders. The caller's cart is converted into an
// order; an empty body places the order without coupon or address.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	}
	o, err := h.orders.PlaceOrder(r.Context(), principal(r).UserID, order.PlaceOrderRequest{
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(*o))
}

// ListOrders serves GET /orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), principal(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrder(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder serves GET /orders/{id}. Orders of other users are reported as
// not found.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), principal(r).UserID, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*o))
}

// UpdateOrderStatus serves PATCH /orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*o))
}

// AttachPaymentIntent serves PUT /orders/{id}/payment-intent.
func (h *Handler) AttachPaymentIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req paymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.AttachPaymentIntent(r.Context(), id, req.PaymentIntentID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*o))
}
