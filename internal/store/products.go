package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dbreno/mugiwaradb/internal/models"
)

// Catalog is the read-only product surface. Catalog edits belong to an
// external service; the store only reads price and stock.
type Catalog interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	SearchProductsByName(ctx context.Context, name string) ([]models.Product, error)
	InventoryReport(ctx context.Context) (*models.InventoryReport, error)
}

// GetProducts retrieves all products ordered by name
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY name")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ProductNotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SearchProductsByName finds products whose name contains the given text,
// case-insensitively.
func (s *Store) SearchProductsByName(ctx context.Context, name string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE name ILIKE '%' || $1 || '%' ORDER BY name", name)
	return products, err
}

// InventoryReport summarizes the whole catalog in one query.
func (s *Store) InventoryReport(ctx context.Context) (*models.InventoryReport, error) {
	var report models.InventoryReport
	err := s.db.GetContext(ctx, &report, `
		SELECT COUNT(*) AS distinct_products,
		       COALESCE(SUM(price * stock), 0) AS total_stock_value
		FROM products`)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
