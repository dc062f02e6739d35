// internal/order/service.go
package order

import (
	"context"

	"doceria/internal/cart"
)

// CheckoutRequest carries the form data of a checkout. Token is the cart
// token the form was rendered with.
type CheckoutRequest struct {
	Customer Customer
	Token    string
}

// Service defines the interface for the order service.
type Service interface {
	Checkout(ctx context.Context, st cart.Store, req CheckoutRequest) (*Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	RecentOrders(ctx context.Context, limit int) ([]Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	PlacedInSession(st cart.Store, id int64) bool
}

// Ledger persists orders. Create must store an order and all its lines in one
// transaction.
type Ledger interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	Recent(ctx context.Context, limit int) ([]Order, error)
	Delete(ctx context.Context, id int64) error
}
