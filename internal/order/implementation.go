// internal/order/implementation.go
package order

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"doceria/internal/cart"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var tracer = otel.Tracer("doceria/order")

const (
	sessionOrdersKey = "orders"
	maxSessionOrders = 20
)

// service implements the Service interface.
type service struct {
	ledger   Ledger
	carts    cart.Service
	logger   *slog.Logger
	now      func() time.Time
	placed   metric.Int64Counter
	failures metric.Int64Counter
}

// NewService creates a new order service instance.
func NewService(ledger Ledger, carts cart.Service, logger *slog.Logger) Service {
	s := &service{
		ledger: ledger,
		carts:  carts,
		logger: logger,
		now:    time.Now,
	}

	// resolved here so a provider installed at startup is the one recording
	meter := otel.GetMeterProvider().Meter("doceria/order")

	var err error
	if s.placed, err = meter.Int64Counter("doceria.orders.placed",
		metric.WithDescription("Orders committed to the ledger")); err != nil {
		s.placed = noop.Int64Counter{}
	}
	if s.failures, err = meter.Int64Counter("doceria.checkout.failures",
		metric.WithDescription("Rejected or failed checkouts")); err != nil {
		s.failures = noop.Int64Counter{}
	}
	return s
}

// Checkout turns the cart in st into an order. The cart is cleared only after
// the order is committed; on any error it is left as it was.
func (s *service) Checkout(ctx context.Context, st cart.Store, req CheckoutRequest) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.checkout")
	defer span.End()

	c := s.carts.Load(st)
	if c.IsEmpty() {
		existing, err := s.replay(ctx, st, req.Token)
		if err != nil {
			span.RecordError(err)
			s.fail(ctx, "persistence")
			return nil, &PersistenceError{Err: err}
		}
		if existing != nil {
			span.SetAttributes(attribute.Bool("order.replayed", true))
			return existing, nil
		}
		s.fail(ctx, "empty_cart")
		return nil, ErrEmptyCart
	}

	customer, err := req.Customer.normalize()
	if err != nil {
		s.fail(ctx, "validation")
		return nil, err
	}

	snapshot := c.Snapshot()
	o := &Order{
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerAddress: customer.Address,
		IdentityID:      customer.IdentityID,
		Total:           cart.Total(snapshot),
		IdempotencyKey:  c.Token,
		CreatedAt:       s.now().UTC(),
		Lines:           make([]Line, len(snapshot)),
	}
	for i, l := range snapshot {
		o.Lines[i] = Line{ItemName: l.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}

	err = s.ledger.Create(ctx, o)
	if errors.Is(err, errDuplicateCheckout) {
		existing, ferr := s.ledger.FindByIdempotencyKey(ctx, o.IdempotencyKey)
		if ferr == nil {
			span.SetAttributes(attribute.Bool("order.replayed", true))
			s.finish(st, existing)
			return existing, nil
		}
		err = ferr
	}
	if err != nil {
		span.RecordError(err)
		s.fail(ctx, "persistence")
		s.logger.Error("order persistence failed",
			slog.Int("lines", len(o.Lines)),
			slog.String("total", o.Total.StringFixed(2)),
			slog.Any("err", err),
		)
		return nil, &PersistenceError{Err: err}
	}

	s.finish(st, o)
	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.logger.Info("order placed",
		slog.Int64("order_id", o.ID),
		slog.Int("lines", len(o.Lines)),
		slog.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// replay finds the order a resubmitted form already created. Only orders
// placed from the same session are returned.
func (s *service) replay(ctx context.Context, st cart.Store, token string) (*Order, error) {
	if token == "" {
		return nil, nil
	}
	existing, err := s.ledger.FindByIdempotencyKey(ctx, token)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.PlacedInSession(st, existing.ID) {
		return nil, nil
	}
	return existing, nil
}

func (s *service) fail(ctx context.Context, reason string) {
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// finish clears the cart and remembers the order for this session.
func (s *service) finish(st cart.Store, o *Order) {
	s.carts.Clear(st)

	var ids []int64
	if _, err := st.Get(sessionOrdersKey, &ids); err != nil {
		ids = nil
	}
	if !slices.Contains(ids, o.ID) {
		ids = append(ids, o.ID)
	}
	if len(ids) > maxSessionOrders {
		ids = ids[len(ids)-maxSessionOrders:]
	}
	if err := st.Set(sessionOrdersKey, ids); err != nil {
		s.logger.Warn("failed to remember order in session", slog.Int64("order_id", o.ID), slog.Any("err", err))
	}
}

// PlacedInSession reports whether id was placed from this session.
func (s *service) PlacedInSession(st cart.Store, id int64) bool {
	var ids []int64
	if ok, err := st.Get(sessionOrdersKey, &ids); !ok || err != nil {
		return false
	}
	return slices.Contains(ids, id)
}

func (s *service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.ledger.Get(ctx, id)
}

func (s *service) RecentOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.ledger.Recent(ctx, limit)
}

func (s *service) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.ledger.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("order deleted", slog.Int64("order_id", id))
	return nil
}
