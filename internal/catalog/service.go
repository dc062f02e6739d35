// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Service defines the interface for the catalog service.
type Service interface {
	ListItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	UpdateItem(ctx context.Context, id int64, unitPrice decimal.Decimal, available bool) (*Item, error)
	Seed(ctx context.Context, items []Item) (int, error)
}
