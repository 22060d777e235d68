package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres error codes the checkout path cares about.
const (
	pqLockNotAvailable = "55P03"
	pqUniqueViolation  = "23505"
)

var (
	// ErrInvalidCart rejects an empty cart or a non-positive quantity. It is
	// raised before any transaction is opened.
	ErrInvalidCart = errors.New("invalid cart")

	// ErrBusy means a row lock could not be acquired within the configured
	// wait. Nothing was committed; the caller may retry the whole checkout.
	ErrBusy = errors.New("inventory busy, try again")

	// ErrInvalidInput rejects malformed input outside the checkout path.
	ErrInvalidInput = errors.New("invalid input data")

	// ErrEmailTaken is the user-facing form of the customers.email unique
	// constraint.
	ErrEmailTaken = errors.New("email already registered")

	// ErrNotFound is the generic lookup miss for orders, customers and staff.
	ErrNotFound = errors.New("not found")
)

// ProductNotFoundError aborts a checkout that references a product that does
// not exist. A cart naming a deleted product is invalid, not partially honored.
type ProductNotFoundError struct {
	ID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ID)
}

// InsufficientStockError carries the product name so the caller can show
// which item blocked checkout.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// mapPQError translates driver errors into the store taxonomy. Anything not
// recognized is returned as-is and treated as a storage failure upstream.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqLockNotAvailable:
		return ErrBusy
	case pqUniqueViolation:
		if pqErr.Constraint == "customers_email_key" {
			return ErrEmailTaken
		}
	}
	return err
}
