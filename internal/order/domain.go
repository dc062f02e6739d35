// internal/order/domain.go
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrOrderNotFound    = errors.New("order not found")
	ErrValidation       = errors.New("invalid checkout details")
	ErrOrderPersistence = errors.New("order could not be saved")

	// errDuplicateCheckout is returned by a ledger when the idempotency key
	// was already used.
	errDuplicateCheckout = errors.New("duplicate checkout")
)

// FieldError names one rejected checkout field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError lists every problem with the submitted customer details.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError wraps a failed order transaction. Nothing was written.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v: %v", ErrOrderPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrOrderPersistence }

// Field limits follow the ledger columns.
const (
	maxNameLen    = 100
	maxPhoneLen   = 20
	maxAddressLen = 255
)

// Customer identifies who placed an order: contact details, an account, or
// both.
type Customer struct {
	Name       string
	Phone      string
	Address    string
	IdentityID *int64
}

// normalize trims the contact fields and checks them. Contact details are
// all required unless an account is referenced.
func (c Customer) normalize() (Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)

	var fields []FieldError
	check := func(field, value string, max int) {
		switch {
		case value == "" && c.IdentityID == nil:
			fields = append(fields, FieldError{Field: field, Reason: "is required"})
		case utf8.RuneCountInString(value) > max:
			fields = append(fields, FieldError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", max)})
		}
	}
	check("name", c.Name, maxNameLen)
	check("phone", c.Phone, maxPhoneLen)
	check("address", c.Address, maxAddressLen)

	if len(fields) > 0 {
		return c, &ValidationError{Fields: fields}
	}
	return c, nil
}

// Order is an immutable record of one checkout.
type Order struct {
	ID              int64           `json:"id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	IdentityID      *int64          `json:"identity_id,omitempty"`
	Total           decimal.Decimal `json:"total"`
	IdempotencyKey  string          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []Line          `json:"lines"`
}

// Line is an item as it was priced in the cart at checkout.
type Line struct {
	ID        int64           `json:"id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal recomputes the total from the lines. It always equals Total.
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// OrderPlacedEvent is appended to the event log with every order.
type OrderPlacedEvent struct {
	OrderID    int64  `json:"order_id"`
	Total      string `json:"total"`
	Lines      int    `json:"lines"`
	IdentityID *int64 `json:"identity_id,omitempty"`
}

// OrderDeletedEvent records an administrator removing an order.
type OrderDeletedEvent struct {
	OrderID int64 `json:"order_id"`
}
