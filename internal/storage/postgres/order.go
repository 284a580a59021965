package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, total_amount, discount_amount, final_amount, coupon_id,
		status, shipping_address, payment_intent_id, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders
		(user_id, total_amount, discount_amount, final_amount, coupon_id, status, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	getOrderByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	orderItemsSQL = `SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`

	couponsByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = ANY($1)`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	setPaymentIntentSQL = `UPDATE orders SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1`
)

var _ order.Store = (*OrderRepository)(nil)

// OrderRepository implements order.Store backed by PostgreSQL.
type OrderRepository struct {
	db dbtx
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// Create inserts the order row and its lines. The lines are sent as one
// batch. Callers wanting atomicity run it through TxManager.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.db.QueryRow(ctx, createOrderSQL,
		o.UserID, o.TotalAmount, o.DiscountAmount, o.FinalAmount, o.CouponID,
		string(o.Status), o.ShippingAddress,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating order for user %d: %w", o.UserID, err)
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(createOrderItemSQL, o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice)
	}
	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range o.Lines {
		if err := br.QueryRow().Scan(&o.Lines[i].ID); err != nil {
			return fmt.Errorf("creating item %d of order %d: %w", i, o.ID, err)
		}
		o.Lines[i].OrderID = o.ID
	}

	return nil
}

// ListByUser returns the user's orders, newest first, with lines and coupons.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrderRow)
	if err != nil {
		return nil, fmt.Errorf("scanning order rows: %w", err)
	}
	if err := r.attach(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetByUser returns the order only if it belongs to userID.
func (r *OrderRepository) GetByUser(ctx context.Context, userID, orderID int64) (*order.Order, error) {
	return r.get(ctx, getOrderByUserSQL, orderID, userID)
}

// GetByID returns the order regardless of owner.
func (r *OrderRepository) GetByID(ctx context.Context, orderID int64) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, orderID)
}

func (r *OrderRepository) get(ctx context.Context, query string, args ...any) (*order.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	orders := []order.Order{o}
	if err := r.attach(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attach loads lines and coupons for orders in two queries.
func (r *OrderRepository) attach(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	var couponIDs []int64
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Lines = make([]order.Line, 0)
		if o.CouponID != nil {
			couponIDs = append(couponIDs, *o.CouponID)
		}
	}

	rows, err := r.db.Query(ctx, orderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l order.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("scanning order item row: %w", err)
		}
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating order item rows: %w", err)
	}
	rows.Close()

	if len(couponIDs) == 0 {
		return nil
	}
	crows, err := r.db.Query(ctx, couponsByIDSQL, couponIDs)
	if err != nil {
		return fmt.Errorf("querying order coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(crows, func(row pgx.CollectableRow) (coupon.Coupon, error) {
		return scanCoupon(row)
	})
	if err != nil {
		return fmt.Errorf("scanning order coupons: %w", err)
	}
	byID := make(map[int64]*coupon.Coupon, len(coupons))
	for i := range coupons {
		byID[coupons[i].ID] = &coupons[i]
	}
	for i := range orders {
		if orders[i].CouponID != nil {
			orders[i].Coupon = byID[*orders[i].CouponID]
		}
	}
	return nil
}

// UpdateStatus is a compare-and-set on the order status. Returns
// order.ErrInvalidTransition when the order is not in status from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID int64, from, to order.Status) error {
	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, orderID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating status of order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInvalidTransition
	}
	return nil
}

// SetPaymentIntent stores the payment gateway reference.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	tag, err := r.db.Exec(ctx, setPaymentIntentSQL, orderID, intentID)
	if err != nil {
		return fmt.Errorf("setting payment intent of order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrderRow(row pgx.CollectableRow) (order.Order, error) {
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.TotalAmount, &o.DiscountAmount, &o.FinalAmount, &o.CouponID,
		&status, &o.ShippingAddress, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
