package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type createCouponRequest struct {
	Code          string           `json:"code"`
	DiscountType  string           `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	IsActive      *bool            `json:"is_active"`
	ExpiresAt     *time.Time       `json:"expires_at"`
	UsageLimit    *int             `json:"usage_limit"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount"`
}

// ValidateCoupon serves POST /coupons/validate. It reports the discount the
// code would grant without consuming it.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.coupons.Preview(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Coupon:      toCoupon(*p.Coupon),
		Discount:    p.Discount.StringFixed(2),
		FinalAmount: p.Final.StringFixed(2),
	})
}

// CreateCoupon serves POST /coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.coupons.Create(r.Context(), coupon.CreateRequest{
		Code:          req.Code,
		DiscountType:  coupon.DiscountType(req.DiscountType),
		Value:         req.DiscountValue,
		IsActive:      req.IsActive,
		ExpiresAt:     req.ExpiresAt,
		UsageLimit:    req.UsageLimit,
		MinimumAmount: req.MinimumAmount,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoupon(*c))
}

// ListCoupons serves GET /coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	resp := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		resp[i] = toCoupon(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCoupon serves GET /coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.coupons.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCoupon(*c))
}
