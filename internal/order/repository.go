// internal/order/repository.go
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"doceria/internal/eventlog"
	"doceria/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SQLLedger stores orders in the orders and order_lines tables.
type SQLLedger struct {
	db *storage.DB
}

func NewSQLLedger(db *storage.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// Create inserts the order, its lines and an OrderPlaced event in a single
// transaction, then fills in the generated ids.
func (l *SQLLedger) Create(ctx context.Context, o *Order) error {
	ctx, span := tracer.Start(ctx, "order.ledger.create", trace.WithAttributes(attribute.Int("order.lines", len(o.Lines))))
	defer span.End()

	var key sql.NullString
	if o.IdempotencyKey != "" {
		key = sql.NullString{String: o.IdempotencyKey, Valid: true}
	}

	lineIDs := make([]int64, len(o.Lines))
	var orderID int64
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (customer_name, customer_phone, customer_address, identity_id, total, idempotency_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, o.CustomerName, o.CustomerPhone, o.CustomerAddress, nullableID(o.IdentityID), o.Total, key, o.CreatedAt).Scan(&orderID)
		if err != nil {
			if storage.IsUniqueViolation(err) && key.Valid {
				return errDuplicateCheckout
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, line := range o.Lines {
			err := tx.QueryRowContext(ctx, `
				INSERT INTO order_lines (order_id, item_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, orderID, line.ItemName, line.Quantity, line.UnitPrice).Scan(&lineIDs[i])
			if err != nil {
				return fmt.Errorf("insert order line %q: %w", line.ItemName, err)
			}
		}

		return eventlog.Append(ctx, tx, "order", strconv.FormatInt(orderID, 10), "OrderPlaced", OrderPlacedEvent{
			OrderID:    orderID,
			Total:      o.Total.StringFixed(2),
			Lines:      len(o.Lines),
			IdentityID: o.IdentityID,
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	o.ID = orderID
	for i := range o.Lines {
		o.Lines[i].ID = lineIDs[i]
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))
	return nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

const orderColumns = `id, customer_name, customer_phone, customer_address, identity_id, total, idempotency_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o        Order
		identity sql.NullInt64
		key      sql.NullString
	)
	err := row.Scan(
		&o.ID,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CustomerAddress,
		&identity,
		&o.Total,
		&key,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if identity.Valid {
		id := identity.Int64
		o.IdentityID = &id
	}
	o.IdempotencyKey = key.String
	return &o, nil
}

func (l *SQLLedger) Get(ctx context.Context, id int64) (*Order, error) {
	return l.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (l *SQLLedger) FindByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	return l.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
}

func (l *SQLLedger) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	o, err := scanOrder(l.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if o.Lines, err = l.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (l *SQLLedger) lines(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, item_name, quantity, unit_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.ItemName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order lines: %w", err)
	}
	return lines, nil
}

// Recent returns the newest orders first, with their lines.
func (l *SQLLedger) Recent(ctx context.Context, limit int) ([]Order, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	// rows must be closed before querying lines on a single-connection pool
	for i := range orders {
		if orders[i].Lines, err = l.lines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// Delete removes an order; its lines go with it through the foreign key
// cascade.
func (l *SQLLedger) Delete(ctx context.Context, id int64) error {
	return l.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		if n == 0 {
			return ErrOrderNotFound
		}

		return eventlog.Append(ctx, tx, "order", strconv.FormatInt(id, 10), "OrderDeleted", OrderDeletedEvent{OrderID: id})
	})
}
