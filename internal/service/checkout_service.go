package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/store"
	"github.com/dbreno/mugiwaradb/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderEventPublisher publishes order events after a checkout commits.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// CheckoutService runs the order placement transaction: validate the cart,
// lock and check inventory, snapshot prices, persist the order aggregate and
// decrement stock as one atomic unit.
type CheckoutService struct {
	beginner  store.CheckoutBeginner
	orders    OrderReader
	publisher OrderEventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service. publisher may be nil
// when no broker is wired (tests, tooling).
func NewCheckoutService(beginner store.CheckoutBeginner, orders OrderReader, publisher OrderEventPublisher) *CheckoutService {
	return &CheckoutService{
		beginner:  beginner,
		orders:    orders,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CartEntry is one (product, quantity) pair submitted at checkout.
type CartEntry struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// PlaceOrderRequest carries the cart plus the identities resolved by the
// account directory. StaffID is the configured default on self-checkout.
type PlaceOrderRequest struct {
	CustomerID    int64
	StaffID       int64
	PaymentMethod string
	Entries       []CartEntry
}

// PlaceOrderResponse is returned on a committed order.
type PlaceOrderResponse struct {
	OrderID     int64 `json:"order_id"`
	TotalAmount int64 `json:"total_amount"`
}

// PlaceOrder executes the placement transaction. Locks are taken in ascending
// product ID order so concurrent checkouts sharing products cannot deadlock.
// On any failure after the transaction opens, everything rolls back: no order
// header, no lines, no stock change survives a failed attempt.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateCart(req); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	sess, err := s.beginner.BeginCheckout(ctx)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("failed to open checkout session: %w", err)
	}

	resp, event, err := s.placeOrderTx(ctx, sess, req)
	if err != nil {
		_ = sess.Rollback()
		util.OrdersRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	if err := sess.Commit(); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", resp.OrderID),
		zap.Int64("customer_id", req.CustomerID),
		zap.Int64("total_amount", resp.TotalAmount))

	// The order is durable; event delivery is best-effort.
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderPlaced event",
				zap.Int64("order_id", resp.OrderID),
				zap.Error(err))
		}
	}

	return resp, nil
}

// placeOrderTx runs steps 2-5 of the placement algorithm inside an open
// session. The caller owns commit and rollback.
func (s *CheckoutService) placeOrderTx(
	ctx context.Context,
	sess store.CheckoutSession,
	req *PlaceOrderRequest,
) (*PlaceOrderResponse, *models.OrderPlacedEvent, error) {

	// Duplicate cart entries stay separate order lines, so sufficiency is
	// checked against the combined demand per product. Locking once per
	// distinct product in ascending ID order is the deadlock-avoidance rule.
	demand := make(map[int64]int)
	ids := make([]int64, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if _, seen := demand[entry.ProductID]; !seen {
			ids = append(ids, entry.ProductID)
		}
		demand[entry.ProductID] += entry.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[int64]store.LockedProduct, len(ids))
	for _, id := range ids {
		product, err := sess.LockProduct(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if demand[id] > product.Stock {
			return nil, nil, &store.InsufficientStockError{
				ProductName: product.Name,
				Requested:   demand[id],
				Available:   product.Stock,
			}
		}
		locked[id] = product
	}

	var total int64
	for _, entry := range req.Entries {
		total += locked[entry.ProductID].UnitPrice * int64(entry.Quantity)
	}

	order := &models.Order{
		CustomerID:    req.CustomerID,
		StaffID:       req.StaffID,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusApproved,
		TotalAmount:   total,
	}
	if err := sess.InsertOrder(ctx, order); err != nil {
		return nil, nil, err
	}

	lines := make([]models.OrderLineData, 0, len(req.Entries))
	for _, entry := range req.Entries {
		line := &models.OrderLine{
			OrderID:   order.ID,
			ProductID: entry.ProductID,
			Quantity:  entry.Quantity,
			UnitPrice: locked[entry.ProductID].UnitPrice,
		}
		if err := sess.InsertOrderLine(ctx, line); err != nil {
			return nil, nil, err
		}

		remaining, err := sess.DecrementStock(ctx, entry.ProductID, entry.Quantity)
		if err != nil {
			return nil, nil, err
		}

		lines = append(lines, models.OrderLineData{
			ProductID: entry.ProductID,
			Quantity:  entry.Quantity,
			UnitPrice: line.UnitPrice,
			Remaining: remaining,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Lines:       lines,
	}

	return &PlaceOrderResponse{OrderID: order.ID, TotalAmount: total}, event, nil
}

// validateCart rejects bad carts before any transaction or lock exists.
func validateCart(req *PlaceOrderRequest) error {
	if len(req.Entries) == 0 {
		return fmt.Errorf("%w: cart is empty", store.ErrInvalidCart)
	}
	for _, entry := range req.Entries {
		if entry.Quantity <= 0 {
			return fmt.Errorf("%w: quantity %d for product %d",
				store.ErrInvalidCart, entry.Quantity, entry.ProductID)
		}
	}
	if req.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required", store.ErrInvalidCart)
	}
	return nil
}

func rejectionReason(err error) string {
	var notFound *store.ProductNotFoundError
	var insufficient *store.InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.Is(err, store.ErrBusy):
		return "busy"
	default:
		return "storage_error"
	}
}
