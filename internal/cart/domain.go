// internal/cart/domain.go
package cart

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"doceria/internal/catalog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

// MaxQuantity caps a single line.
const MaxQuantity = 99

const sessionKey = "cart"

// Line is a snapshot of an item taken when it was added. Later catalog
// changes do not touch it.
type Line struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart maps item ids to lines; one line per item. Token changes on every
// mutation and identifies one checkout attempt of exactly this content.
type Cart struct {
	Lines map[int64]Line `json:"lines"`
	Token string         `json:"token"`
}

func newCart() *Cart {
	return &Cart{Lines: make(map[int64]Line)}
}

func (c *Cart) put(line Line) {
	c.Lines[line.ItemID] = line
	c.Token = uuid.NewString()
}

func (c *Cart) remove(itemID int64) (Line, bool) {
	line, ok := c.Lines[itemID]
	if !ok {
		return Line{}, false
	}
	delete(c.Lines, itemID)
	c.Token = uuid.NewString()
	return line, true
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Snapshot returns the lines sorted by item id.
func (c *Cart) Snapshot() []Line {
	lines := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines
}

// View is the rendered cart.
type View struct {
	Lines []Line
	Total decimal.Decimal
	Token string
}

func (c *Cart) View() View {
	lines := c.Snapshot()
	return View{Lines: lines, Total: Total(lines), Token: c.Token}
}

// Total sums unit price times quantity.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ParseQuantity reads a submitted quantity. Zero and negative numbers are
// valid and mean "remove".
func ParseQuantity(raw string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	if q > MaxQuantity {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// ParseItemID maps a malformed identifier to catalog.ErrItemNotFound.
func ParseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, catalog.ErrItemNotFound
	}
	return id, nil
}
