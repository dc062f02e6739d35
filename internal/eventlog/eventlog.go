// internal/eventlog/eventlog.go
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event is an immutable record of something that happened to an aggregate.
type Event struct {
	ID            int64           `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Execer is satisfied by both *sql.DB and *sql.Tx, so events can be written
// inside the caller's transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var tracer = otel.Tracer("doceria/eventlog")

// Append records one event. The payload is marshalled to JSON.
func Append(ctx context.Context, q Execer, aggregateType, aggregateID, eventType string, payload any) error {
	ctx, span := tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.String("aggregate.id", aggregateID),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO events (aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, aggregateType, aggregateID, eventType, string(data), time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Reader queries the log.
type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Recent returns the newest events first.
func (r *Reader) Recent(ctx context.Context, limit int) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "eventlog.recent", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

// ForAggregate returns an aggregate's events in the order they were written.
func (r *Reader) ForAggregate(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "eventlog.for_aggregate",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.String("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY id ASC
	`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev      Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
