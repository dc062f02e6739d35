// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"doceria/internal/eventlog"
	"doceria/internal/storage"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("doceria/catalog")

// service implements the Service interface.
type service struct {
	db     *storage.DB
	cache  Cache
	sfg    singleflight.Group
	logger *slog.Logger

	// generation counts catalog changes; a menu read during a change is not
	// written back to the cache.
	cacheMu    sync.Mutex
	generation uint64
}

// NewService creates a new catalog service instance. A nil cache disables
// menu caching.
func NewService(db *storage.DB, cache Cache, logger *slog.Logger) Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &service{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

const itemColumns = `id, name, description, unit_price, available, image_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	item := &Item{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.UnitPrice,
		&item.Available,
		&item.ImageRef,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns every item ordered by id, served from the menu cache when
// possible.
func (s *service) ListItems(ctx context.Context) ([]Item, error) {
	ctx, span := tracer.Start(ctx, "catalog.list")
	defer span.End()

	v, err, shared := s.sfg.Do(menuCacheKey, func() (any, error) {
		// shared by every waiting caller, so one disconnect must not fail the rest
		flightCtx := context.WithoutCancel(ctx)
		gen := s.currentGeneration()

		items, err := s.cache.Get(flightCtx)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return items, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("menu cache get failed", slog.Any("err", err))
		}

		items, err = s.queryItems(flightCtx)
		if err != nil {
			return nil, err
		}

		s.fillCache(flightCtx, gen, items)
		return items, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("singleflight.shared", shared))

	items := v.([]Item)
	out := make([]Item, len(items))
	copy(out, items)
	return out, nil
}

func (s *service) queryItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM catalog_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog: %w", err)
	}
	return items, nil
}

// GetItem reads an item straight from the database so carts always snapshot
// the current price.
func (s *service) GetItem(ctx context.Context, id int64) (*Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// UpdateItem changes price and availability. Carts and orders keep the
// price they captured.
func (s *service) UpdateItem(ctx context.Context, id int64, unitPrice decimal.Decimal, available bool) (*Item, error) {
	ctx, span := tracer.Start(ctx, "catalog.update", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	if unitPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	unitPrice = unitPrice.Round(2)

	var updated *Item
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := scanItem(tx.QueryRowContext(ctx,
			`SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get item: %w", err)
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE catalog_items
			SET unit_price = $1, available = $2, updated_at = $3
			WHERE id = $4
		`, unitPrice, available, now, id)
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}

		event := ItemUpdatedEvent{
			ID:        id,
			Name:      current.Name,
			OldPrice:  current.UnitPrice.StringFixed(2),
			NewPrice:  unitPrice.StringFixed(2),
			Available: available,
		}
		if err := eventlog.Append(ctx, tx, "catalog_item", strconv.FormatInt(id, 10), "CatalogItemUpdated", event); err != nil {
			return err
		}

		current.UnitPrice = unitPrice
		current.Available = available
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("catalog item updated",
		slog.Int64("item_id", id),
		slog.String("unit_price", unitPrice.StringFixed(2)),
		slog.Bool("available", available),
	)
	return updated, nil
}

// Seed inserts items when the catalog is empty. It reports how many items
// were inserted.
func (s *service) Seed(ctx context.Context, items []Item) (int, error) {
	inserted := 0
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_items`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count catalog: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, item := range items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO catalog_items (name, description, unit_price, available, image_ref, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6)
			`, item.Name, item.Description, item.UnitPrice.Round(2), item.Available, item.ImageRef, now)
			if err != nil {
				return fmt.Errorf("failed to insert %q: %w", item.Name, err)
			}
			inserted++
		}

		return eventlog.Append(ctx, tx, "catalog", "menu", "CatalogSeeded", CatalogSeededEvent{Items: inserted})
	})
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		s.invalidate(ctx)
		s.logger.Info("catalog seeded", slog.Int("items", inserted))
	}
	return inserted, nil
}

func (s *service) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// fillCache stores items read at generation gen unless the catalog changed
// since.
func (s *service) fillCache(ctx context.Context, gen uint64, items []Item) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.generation != gen {
		s.logger.Debug("menu changed during read; not caching")
		return
	}
	if err := s.cache.Set(ctx, items); err != nil {
		s.logger.Warn("menu cache set failed", slog.Any("err", err))
	}
}

// invalidate runs after a committed change.
func (s *service) invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.generation++
	s.sfg.Forget(menuCacheKey)
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("menu cache invalidate failed", slog.Any("err", err))
	}
}
