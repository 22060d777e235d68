package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dbreno/mugiwaradb/internal/broker"
	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaleRecorder persists per-product sales counters.
type SaleRecorder interface {
	RecordSale(ctx context.Context, productID int64, quantity int, revenue int64) (int64, error)
}

// LowStockPublisher publishes low-stock alerts.
type LowStockPublisher interface {
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}

// SalesWorker consumes OrderPlaced events, feeds the sales report counters
// and raises low-stock alerts. It runs strictly after commit: nothing here
// can affect an order's outcome.
type SalesWorker struct {
	consumer          *broker.Consumer
	recorder          SaleRecorder
	alerts            LowStockPublisher
	lowStockThreshold int
	logger            *zap.Logger
}

// NewSalesWorker creates a new sales worker. alerts may be nil to disable
// low-stock events (warnings are still logged).
func NewSalesWorker(consumer *broker.Consumer, recorder SaleRecorder, alerts LowStockPublisher, lowStockThreshold int) *SalesWorker {
	return &SalesWorker{
		consumer:          consumer,
		recorder:          recorder,
		alerts:            alerts,
		lowStockThreshold: lowStockThreshold,
		logger:            util.GetLogger(),
	}
}

// Start starts the worker
func (w *SalesWorker) Start(ctx context.Context) error {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.HandleOrderPlaced)

	w.logger.Info("Starting sales worker",
		zap.Int("low_stock_threshold", w.lowStockThreshold))
	return w.consumer.StartConsuming(ctx, eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SalesWorker) Stop() error {
	w.logger.Info("Stopping sales worker")
	return w.consumer.Close()
}

// HandleOrderPlaced records every line of a placed order and checks the
// remaining stock each line reported.
func (w *SalesWorker) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	for _, line := range event.Lines {
		revenue := line.UnitPrice * int64(line.Quantity)
		if _, err := w.recorder.RecordSale(ctx, line.ProductID, line.Quantity, revenue); err != nil {
			return fmt.Errorf("failed to record sale for product %d: %w", line.ProductID, err)
		}
		util.SalesRecordedTotal.Inc()

		if line.Remaining <= w.lowStockThreshold {
			w.reportLowStock(ctx, line.ProductID, line.Remaining)
		}
	}
	return nil
}

func (w *SalesWorker) reportLowStock(ctx context.Context, productID int64, remaining int) {
	w.logger.Warn("Product stock is low",
		zap.Int64("product_id", productID),
		zap.Int("remaining", remaining))
	util.LowStockProducts.WithLabelValues(strconv.FormatInt(productID, 10)).Set(float64(remaining))

	if w.alerts == nil {
		return
	}

	event := &models.LowStockEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeLowStock,
			Timestamp: time.Now(),
		},
		ProductID: productID,
		Remaining: remaining,
		Threshold: w.lowStockThreshold,
	}
	if err := w.alerts.PublishLowStock(ctx, event); err != nil {
		w.logger.Error("Failed to publish LowStock event",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}
}
