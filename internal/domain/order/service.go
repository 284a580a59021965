package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
)

// PlaceOrderRequest holds the optional inputs of an order placement.
type PlaceOrderRequest struct {
	CouponCode      string
	ShippingAddress *string
}

// Option configures a Service.
type Option func(s *Service)

// WithClock overrides the time source used for coupon expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service places and queries orders.
type Service struct {
	uow    UnitOfWork
	orders Store
	now    func() time.Time

	tracer trace.Tracer
	placed metric.Int64Counter
}

// NewService creates an order Service. orders serves reads outside of the
// placement transaction.
func NewService(uow UnitOfWork, orders Store, tracer trace.Tracer, meter metric.Meter, opts ...Option) (*Service, error) {
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Number of orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.placed counter")
	}

	s := &Service{
		uow:    uow,
		orders: orders,
		now:    time.Now,
		tracer: tracer,
		placed: placed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PlaceOrder converts the user's cart into a pending order in one
// transaction: the cart is locked and read, products are checked for
// availability, the coupon is validated and consumed, the order is written
// and the cart is cleared. Any failure leaves every row untouched.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	code := coupon.NormalizeCode(req.CouponCode)
	var orderID int64
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, err := tx.Carts().LockLines(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		for _, l := range lines {
			if !l.Product.IsActive {
				return &ProductUnavailableError{ProductID: l.ProductID, Name: l.Product.Name}
			}
		}

		subtotal := cart.Subtotal(lines).Round(2)
		discount := decimal.Zero
		var applied *coupon.Coupon
		if code != "" {
			v := coupon.NewRepoValidator(tx.Coupons(), coupon.WithClock(s.now))
			applied, err = v.Validate(ctx, code, subtotal)
			if err != nil {
				return err
			}
			discount = coupon.ComputeDiscount(applied, subtotal)
		}

		o := newOrder(userID, lines, subtotal, discount, req.ShippingAddress)
		if applied != nil {
			o.CouponID = &applied.ID
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.ID
		}
		if err := tx.Carts().RemoveLines(ctx, userID, ids); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		if applied != nil {
			if err := tx.Coupons().IncrementUsage(ctx, applied.ID); err != nil {
				return errors.Wrap(err, "increment coupon usage")
			}
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", orderID))
	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("coupon", code != "")))

	o, err := s.orders.GetByUser(ctx, userID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "reload order")
	}
	return o, nil
}

func newOrder(userID int64, lines []cart.Line, subtotal, discount decimal.Decimal, shipping *string) *Order {
	o := &Order{
		UserID:         userID,
		Lines:          make([]Line, 0, len(lines)),
		TotalAmount:    subtotal,
		DiscountAmount: discount,
		FinalAmount:    subtotal.Sub(discount),
		Status:         StatusPending,
	}
	if shipping != nil {
		if addr := strings.TrimSpace(*shipping); addr != "" {
			o.ShippingAddress = &addr
		}
	}
	for _, l := range lines {
		o.Lines = append(o.Lines, Line{
			ProductID:   l.ProductID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.Product.Price,
		})
	}
	return o
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// GetOrder returns one of the user's orders.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (*Order, error) {
	o, err := s.orders.GetByUser(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// UpdateStatus moves an order to a new status if the status machine allows it.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !CanTransition(o.Status, to) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", o.Status, to)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, o.Status, to); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, errors.Wrapf(ErrInvalidTransition, "order %d changed concurrently", orderID)
		}
		return nil, errors.Wrap(err, "update status")
	}
	return s.reload(ctx, orderID)
}

// AttachPaymentIntent records the payment gateway reference for an order.
func (s *Service) AttachPaymentIntent(ctx context.Context, orderID int64, intentID string) (*Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, ErrInvalidPaymentIntent
	}
	if err := s.orders.SetPaymentIntent(ctx, orderID, intentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "set payment intent")
	}
	return s.reload(ctx, orderID)
}

func (s *Service) reload(ctx context.Context, orderID int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "reload order")
	}
	return o, nil
}
