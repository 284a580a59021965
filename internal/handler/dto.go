package handler

import (
	"time"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// Money is rendered as a fixed two-decimal string to keep clients off
// binary floating point.

type productResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	IsActive    bool      `json:"is_active"`
	CategoryID  *int64    `json:"category_id"`
	BrandID     *int64    `json:"brand_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProduct(p product.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		IsActive:    p.IsActive,
		CategoryID:  p.CategoryID,
		BrandID:     p.BrandID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type cartItemResponse struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func toCartItem(it cart.Item) cartItemResponse {
	return cartItemResponse{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
}

type cartLineResponse struct {
	cartItemResponse
	Product   productResponse `json:"product"`
	LineTotal string          `json:"line_total"`
}

type cartResponse struct {
	Items    []cartLineResponse `json:"items"`
	Subtotal string             `json:"subtotal"`
}

func toCart(lines []cart.Line) cartResponse {
	resp := cartResponse{
		Items:    make([]cartLineResponse, len(lines)),
		Subtotal: cart.Subtotal(lines).StringFixed(2),
	}
	for i, l := range lines {
		resp.Items[i] = cartLineResponse{
			cartItemResponse: toCartItem(l.Item),
			Product:          toProduct(l.Product),
			LineTotal:        l.Total().StringFixed(2),
		}
	}
	return resp
}

type couponResponse struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue string     `json:"discount_value"`
	IsActive      bool       `json:"is_active"`
	ExpiresAt     *time.Time `json:"expires_at"`
	UsageLimit    *int       `json:"usage_limit"`
	UsageCount    int        `json:"usage_count"`
	MinimumAmount *string    `json:"minimum_amount"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toCoupon(c coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.Value.StringFixed(2),
		IsActive:      c.IsActive,
		ExpiresAt:     c.ExpiresAt,
		UsageLimit:    c.UsageLimit,
		UsageCount:    c.UsageCount,
		CreatedAt:     c.CreatedAt,
	}
	if c.MinimumAmount != nil {
		m := c.MinimumAmount.StringFixed(2)
		resp.MinimumAmount = &m
	}
	return resp
}

type previewResponse struct {
	Coupon      couponResponse `json:"coupon"`
	Discount    string         `json:"discount"`
	FinalAmount string         `json:"final_amount"`
}

type orderLineResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	Status          string              `json:"status"`
	Items           []orderLineResponse `json:"items"`
	TotalAmount     string              `json:"total_amount"`
	DiscountAmount  string              `json:"discount_amount"`
	FinalAmount     string              `json:"final_amount"`
	Coupon          *couponResponse     `json:"coupon"`
	ShippingAddress *string             `json:"shipping_address"`
	PaymentIntentID *string             `json:"payment_intent_id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrder(o order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		Status:          string(o.Status),
		Items:           make([]orderLineResponse, len(o.Lines)),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		DiscountAmount:  o.DiscountAmount.StringFixed(2),
		FinalAmount:     o.FinalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		PaymentIntentID: o.PaymentIntentID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, l := range o.Lines {
		resp.Items[i] = orderLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(2),
		}
	}
	if o.Coupon != nil {
		c := toCoupon(*o.Coupon)
		resp.Coupon = &c
	}
	return resp
}
