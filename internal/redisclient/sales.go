package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strconv"

	"github.com/dbreno/mugiwaradb/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/record_sale.lua
var recordSaleScript string

const salesProductsKey = "sales:products"

func salesKey(productID int64) string {
	return fmt.Sprintf("sales:%d", productID)
}

// SalesRecorder keeps per-product sales counters. The two hash fields and the
// product-ID set are updated in one Lua script so a crash between increments
// cannot skew the report.
type SalesRecorder struct {
	rdb    *redis.Client
	script *redis.Script
}

// NewSalesRecorder creates a new sales recorder
func NewSalesRecorder(client *Client) *SalesRecorder {
	return &SalesRecorder{
		rdb:    client.GetClient(),
		script: redis.NewScript(recordSaleScript),
	}
}

// RecordSale adds one sold order line to the counters and returns the
// cumulative units sold for the product.
func (s *SalesRecorder) RecordSale(ctx context.Context, productID int64, quantity int, revenue int64) (int64, error) {
	keys := []string{salesKey(productID), salesProductsKey}
	result, err := s.script.Run(ctx, s.rdb, keys, productID, quantity, revenue).Result()
	if err != nil {
		return 0, fmt.Errorf("record sale script failed: %w", err)
	}

	units, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type %T", result)
	}
	return units, nil
}

// GetSalesReport returns counters for every product sold since the counters
// were last reset, ordered by product ID.
func (s *SalesRecorder) GetSalesReport(ctx context.Context) ([]models.ProductSales, error) {
	memberIDs, err := s.rdb.SMembers(ctx, salesProductsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sold products: %w", err)
	}

	report := make([]models.ProductSales, 0, len(memberIDs))
	for _, member := range memberIDs {
		productID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}

		fields, err := s.rdb.HGetAll(ctx, salesKey(productID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read sales for product %d: %w", productID, err)
		}

		units, _ := strconv.ParseInt(fields["units"], 10, 64)
		revenue, _ := strconv.ParseInt(fields["revenue"], 10, 64)
		report = append(report, models.ProductSales{
			ProductID: productID,
			UnitsSold: units,
			Revenue:   revenue,
		})
	}

	sort.Slice(report, func(i, j int) bool { return report[i].ProductID < report[j].ProductID })
	return report, nil
}
