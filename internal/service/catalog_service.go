package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/store"
	"github.com/dbreno/mugiwaradb/internal/util"

	"go.uber.org/zap"
)

// SalesReader exposes the per-product sales counters kept by the sales worker.
type SalesReader interface {
	GetSalesReport(ctx context.Context) ([]models.ProductSales, error)
}

// CatalogService serves product reads and the inventory/sales reports.
// Catalog edits live in an external service and are not exposed here.
type CatalogService struct {
	catalog store.Catalog
	sales   SalesReader
	logger  *zap.Logger
}

// NewCatalogService creates a new catalog service. sales may be nil when no
// Redis is wired; the sales report then reports as unavailable.
func NewCatalogService(catalog store.Catalog, sales SalesReader) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		sales:   sales,
		logger:  util.GetLogger(),
	}
}

// ListProducts returns the whole catalog ordered by name.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	return s.catalog.GetProducts(ctx)
}

// GetProduct returns a single product.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	return s.catalog.GetProductByID(ctx, id)
}

// SearchProducts finds products by name fragment.
func (s *CatalogService) SearchProducts(ctx context.Context, name string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SearchProducts")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: search term is required", store.ErrInvalidInput)
	}
	return s.catalog.SearchProductsByName(ctx, name)
}

// InventoryReport returns the stock summary straight from the database.
func (s *CatalogService) InventoryReport(ctx context.Context) (*models.InventoryReport, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.InventoryReport")
	defer span.End()

	return s.catalog.InventoryReport(ctx)
}

// SalesReport returns the per-product sales counters accumulated by the
// sales worker since startup.
func (s *CatalogService) SalesReport(ctx context.Context) ([]models.ProductSales, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SalesReport")
	defer span.End()

	if s.sales == nil {
		return nil, fmt.Errorf("sales report unavailable: no sales store configured")
	}
	return s.sales.GetSalesReport(ctx)
}
