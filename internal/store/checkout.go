package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbreno/mugiwaradb/internal/models"

	"github.com/jmoiron/sqlx"
)

// LockedProduct is the view of a product row read under an exclusive lock.
// UnitPrice is the pricing snapshot for the transaction holding the lock.
type LockedProduct struct {
	Name      string `db:"name"`
	UnitPrice int64  `db:"price"`
	Stock     int    `db:"stock"`
}

// CheckoutSession is one transaction-scoped storage handle. LockProduct is
// the sole concurrency-control primitive: the row stays locked until Commit
// or Rollback. DecrementStock must only be called under a lock obtained from
// LockProduct in the same session, after the caller verified sufficiency.
type CheckoutSession interface {
	LockProduct(ctx context.Context, productID int64) (LockedProduct, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderLine(ctx context.Context, line *models.OrderLine) error
	DecrementStock(ctx context.Context, productID int64, qty int) (remaining int, err error)
	Commit() error
	Rollback() error
}

// CheckoutBeginner opens checkout sessions. The service layer depends on this
// instead of *Store so the placement algorithm can run against a fake.
type CheckoutBeginner interface {
	BeginCheckout(ctx context.Context) (CheckoutSession, error)
}

// BeginCheckout opens a transaction and bounds its lock wait. A session that
// cannot acquire a row lock within the timeout fails with ErrBusy instead of
// queueing indefinitely behind another checkout.
func (s *Store) BeginCheckout(ctx context.Context) (CheckoutSession, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout transaction: %w", err)
	}

	// lock_timeout is transaction-local, so SET LOCAL cannot leak into other
	// work on the pooled connection.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	return &checkoutTx{tx: tx}, nil
}

type checkoutTx struct {
	tx *sqlx.Tx
}

func (c *checkoutTx) LockProduct(ctx context.Context, productID int64) (LockedProduct, error) {
	var p LockedProduct
	err := c.tx.GetContext(ctx, &p,
		"SELECT name, price, stock FROM products WHERE id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, &ProductNotFoundError{ID: productID}
	}
	if err != nil {
		return p, mapPQError(err)
	}
	return p, nil
}

func (c *checkoutTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, staff_id, payment_method, payment_status, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := c.tx.QueryRowxContext(ctx, query,
		order.CustomerID, order.StaffID, order.PaymentMethod, order.PaymentStatus, order.TotalAmount).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (c *checkoutTx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := c.tx.QueryRowxContext(ctx, query,
		line.OrderID, line.ProductID, line.Quantity, line.UnitPrice).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order line: %w", err)
	}
	return nil
}

func (c *checkoutTx) DecrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	var remaining int
	err := c.tx.QueryRowxContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 RETURNING stock",
		qty, productID).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
	}
	return remaining, nil
}

func (c *checkoutTx) Commit() error {
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkout: %w", err)
	}
	return nil
}

func (c *checkoutTx) Rollback() error {
	return c.tx.Rollback()
}
