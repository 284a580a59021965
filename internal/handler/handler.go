package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// ProductService is the catalog as seen by the API.
type ProductService interface {
	Create(ctx context.Context, req product.CreateRequest) (*product.Product, error)
	Update(ctx context.Context, id int64, req product.UpdateRequest) (*product.Product, error)
	Delete(ctx context.Context, id int64) error
}

// CartService manages the caller's cart.
type CartService interface {
	AddToCart(ctx context.Context, userID, productID int64, qty int) (*cart.Item, error)
	Snapshot(ctx context.Context, userID int64) ([]cart.Line, error)
	UpdateQuantity(ctx context.Context, userID, itemID int64, qty int) (*cart.Item, error)
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
}

// CouponService manages coupons.
type CouponService interface {
	Create(ctx context.Context, req coupon.CreateRequest) (*coupon.Coupon, error)
	List(ctx context.Context) ([]coupon.Coupon, error)
	Get(ctx context.Context, id int64) (*coupon.Coupon, error)
	Preview(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Preview, error)
}

// OrderService places and queries orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, req order.PlaceOrderRequest) (*order.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]order.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, to order.Status) (*order.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID int64, intentID string) (*order.Order, error)
}

// Handler serves the storefront REST API.
type Handler struct {
	catalog  product.Repository
	products ProductService
	carts    CartService
	coupons  CouponService
	orders   OrderService
}

// NewHandler constructs a Handler. catalog serves product reads and is
// expected to be the cached repository.
func NewHandler(
	catalog product.Repository,
	products ProductService,
	carts CartService,
	coupons CouponService,
	orders OrderService,
) *Handler {
	return &Handler{
		catalog:  catalog,
		products: products,
		carts:    carts,
		coupons:  coupons,
		orders:   orders,
	}
}

// Routes returns the API router. Product reads are public, everything else
// needs a bearer token and administration needs the admin role.
func (h *Handler) Routes(auth *Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Use(httpmiddleware.Labeler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(auth.Require)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items/{id}", h.UpdateCartItem)
			r.Delete("/items/{id}", h.RemoveCartItem)
		})

		r.Post("/coupons/validate", h.ValidateCoupon)

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Post("/products", h.CreateProduct)
			r.Patch("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Post("/coupons", h.CreateCoupon)
			r.Get("/coupons", h.ListCoupons)
			r.Get("/coupons/{id}", h.GetCoupon)

			r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
			r.Put("/orders/{id}/payment-intent", h.AttachPaymentIntent)
		})
	})

	return r
}
