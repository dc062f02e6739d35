// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound    = errors.New("catalog item not found")
	ErrItemUnavailable = errors.New("catalog item unavailable")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
)

// Item represents a truffle on the menu.
type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Available   bool            `json:"available"`
	ImageRef    string          `json:"image_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ItemUpdatedEvent is recorded when an administrator reprices an item or
// changes its availability.
type ItemUpdatedEvent struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OldPrice  string `json:"old_price"`
	NewPrice  string `json:"new_price"`
	Available bool   `json:"available"`
}

// CatalogSeededEvent is recorded once, when the default menu is inserted.
type CatalogSeededEvent struct {
	Items int `json:"items"`
}

// DefaultMenu is the menu inserted into an empty catalog.
func DefaultMenu() []Item {
	price := decimal.NewFromInt(5)
	return []Item{
		{Name: "Brigadeiro", Description: "Trufa de brigadeiro tradicional", UnitPrice: price, Available: true, ImageRef: "brigadeiro.jpg"},
		{Name: "Ninho", Description: "Trufa de leite em pó", UnitPrice: price, Available: true, ImageRef: "ninho.jpg"},
		{Name: "Ninho+brigadeiro", Description: "Combinação de ninho e brigadeiro", UnitPrice: price, Available: true, ImageRef: "ninho_brigadeiro.jpg"},
		{Name: "Sensação", Description: "Chocolate com recheio de morango", UnitPrice: price, Available: true, ImageRef: "sensacao.jpg"},
		{Name: "Côco", Description: "Trufa de coco fresco", UnitPrice: price, Available: true, ImageRef: "coco.jpg"},
		{Name: "Amendoim", Description: "Trufa de pasta de amendoim", UnitPrice: price, Available: true, ImageRef: "amendoim.jpg"},
	}
}
