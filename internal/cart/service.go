// internal/cart/service.go
package cart

import (
	"context"

	"doceria/internal/catalog"
)

// Store is the session-scoped key/value storage the cart lives in.
// *session.Session satisfies it.
type Store interface {
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
	Delete(key string)
}

// ItemGetter looks up live catalog data.
type ItemGetter interface {
	GetItem(ctx context.Context, id int64) (*catalog.Item, error)
}

// AddResult tells the caller what AddOrUpdate did.
type AddResult struct {
	Item     catalog.Item
	Quantity int
	Removed  bool
}

// Service defines the interface for the cart service.
type Service interface {
	AddOrUpdate(ctx context.Context, st Store, itemID int64, quantity int) (*AddResult, error)
	View(st Store) View
	Remove(st Store, itemID int64) (*Line, error)
	Clear(st Store)
	Load(st Store) *Cart
}
