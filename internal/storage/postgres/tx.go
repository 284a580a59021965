package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.UnitOfWork = (*TxManager)(nil)

// TxManager runs order placement in a READ COMMITTED transaction. Cart and
// coupon rows are locked explicitly by the repositories it hands out.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager that uses the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx begins a transaction, calls fn, and commits if fn returns nil.
// Errors from fn are returned unchanged after rollback.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Carts() order.CartStore { return &CartRepository{db: r.tx} }

func (r txRepos) Coupons() coupon.Repository { return &CouponRepository{db: r.tx, lock: true} }

func (r txRepos) Orders() order.Store { return &OrderRepository{db: r.tx} }
