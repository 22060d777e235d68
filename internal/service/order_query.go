package service

import (
	"context"
	"errors"

	"github.com/dbreno/mugiwaradb/internal/models"
)

// ErrForbidden means the caller is authenticated but not allowed to see or do
// what was asked.
var ErrForbidden = errors.New("access denied")

// OrderReader is the read side of the order aggregate.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderLinesByOrderID(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error)
}

// GetOrder returns an order with its lines. An order is owned exclusively by
// the customer who placed it; staff may read any order.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64, caller *Identity) (*models.Order, []models.OrderLine, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if caller.Role != models.RoleStaff && order.CustomerID != caller.ID {
		return nil, nil, ErrForbidden
	}

	lines, err := s.orders.GetOrderLinesByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, lines, nil
}

// ListOrders returns the caller's own order history.
func (s *CheckoutService) ListOrders(ctx context.Context, caller *Identity) ([]models.Order, error) {
	return s.orders.GetOrdersByCustomerID(ctx, caller.ID)
}
