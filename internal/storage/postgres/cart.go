package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING ` + cartItemColumns

	cartLinesSQL = `SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
			p.id, p.name, p.description, p.price, p.is_active, p.category_id, p.brand_id,
			p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`

	lockCartLinesSQL = cartLinesSQL + ` FOR UPDATE OF ci`

	updateCartItemSQL = `UPDATE cart_items SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + cartItemColumns

	removeCartItemSQL = `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	removeCartLinesSQL = `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`
)

var (
	_ cart.Repository = (*CartRepository)(nil)
	_ order.CartStore = (*CartRepository)(nil)
)

// CartRepository implements cart.Repository and order.CartStore backed by
// PostgreSQL.
type CartRepository struct {
	db dbtx
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: pool}
}

// Add inserts a cart line or merges qty into the existing one.
func (r *CartRepository) Add(ctx context.Context, userID, productID int64, qty int) (*cart.Item, error) {
	item, err := scanCartItem(r.db.QueryRow(ctx, addCartItemSQL, userID, productID, qty))
	if err != nil {
		if isPgError(err, foreignKeyViolation) {
			return nil, product.ErrNotFound
		}
		if isPgError(err, checkViolation) {
			return nil, cart.ErrInvalidQuantity
		}
		return nil, fmt.Errorf("adding product %d to cart of user %d: %w", productID, userID, err)
	}
	return &item, nil
}

// Lines returns the user's cart joined with current product data.
func (r *CartRepository) Lines(ctx context.Context, userID int64) ([]cart.Line, error) {
	return r.lines(ctx, cartLinesSQL, userID)
}

// LockLines is Lines with the cart rows locked until the surrounding
// transaction ends. Concurrent placements for the same user queue here.
func (r *CartRepository) LockLines(ctx context.Context, userID int64) ([]cart.Line, error) {
	return r.lines(ctx, lockCartLinesSQL, userID)
}

func (r *CartRepository) lines(ctx context.Context, query string, userID int64) ([]cart.Line, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cart of user %d: %w", userID, err)
	}
	defer rows.Close()

	lines := make([]cart.Line, 0)
	for rows.Next() {
		var l cart.Line
		p := &l.Product
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.IsActive, &p.CategoryID, &p.BrandID,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cart row: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart rows: %w", err)
	}

	return lines, nil
}

// UpdateQuantity sets the quantity of one of the user's lines.
func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, itemID int64, qty int) (*cart.Item, error) {
	item, err := scanCartItem(r.db.QueryRow(ctx, updateCartItemSQL, itemID, userID, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	return &item, nil
}

// Remove deletes one of the user's lines.
func (r *CartRepository) Remove(ctx context.Context, userID, itemID int64) error {
	tag, err := r.db.Exec(ctx, removeCartItemSQL, itemID, userID)
	if err != nil {
		return fmt.Errorf("removing cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// Clear deletes all of the user's lines.
func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of user %d: %w", userID, err)
	}
	return nil
}

// RemoveLines deletes the listed lines of the user's cart.
func (r *CartRepository) RemoveLines(ctx context.Context, userID int64, itemIDs []int64) error {
	if _, err := r.db.Exec(ctx, removeCartLinesSQL, userID, itemIDs); err != nil {
		return fmt.Errorf("removing %d ordered lines from cart of user %d: %w", len(itemIDs), userID, err)
	}
	return nil
}

func scanCartItem(row pgx.Row) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}
