// internal/cart/implementation.go
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"doceria/internal/catalog"
)

// service implements the Service interface.
type service struct {
	items  ItemGetter
	logger *slog.Logger
}

// NewService creates a new cart service instance.
func NewService(items ItemGetter, logger *slog.Logger) Service {
	return &service{items: items, logger: logger}
}

// Load returns the stored cart. Undecodable cart data is discarded.
func (s *service) Load(st Store) *Cart {
	c := newCart()
	ok, err := st.Get(sessionKey, c)
	if err != nil {
		s.logger.Warn("discarding unreadable cart", slog.Any("err", err))
		st.Delete(sessionKey)
		return newCart()
	}
	if !ok || c.Lines == nil {
		c.Lines = make(map[int64]Line)
	}
	return c
}

func (s *service) save(st Store, c *Cart) error {
	if err := st.Set(sessionKey, c); err != nil {
		return fmt.Errorf("store cart: %w", err)
	}
	return nil
}

// AddOrUpdate stores a snapshot of the item at quantity, replacing any
// existing line. quantity <= 0 removes the line instead.
func (s *service) AddOrUpdate(ctx context.Context, st Store, itemID int64, quantity int) (*AddResult, error) {
	if quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	c := s.Load(st)
	if quantity <= 0 {
		_, removed := c.remove(itemID)
		if removed {
			if err := s.save(st, c); err != nil {
				return nil, err
			}
		}
		return &AddResult{Item: *item, Removed: removed}, nil
	}

	if !item.Available {
		return nil, catalog.ErrItemUnavailable
	}

	c.put(Line{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  quantity,
	})
	if err := s.save(st, c); err != nil {
		return nil, err
	}
	return &AddResult{Item: *item, Quantity: quantity}, nil
}

func (s *service) View(st Store) View {
	return s.Load(st).View()
}

// Remove deletes the line for itemID. It returns nil when there was none.
func (s *service) Remove(st Store, itemID int64) (*Line, error) {
	c := s.Load(st)
	line, ok := c.remove(itemID)
	if !ok {
		return nil, nil
	}
	if err := s.save(st, c); err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *service) Clear(st Store) {
	st.Delete(sessionKey)
}
