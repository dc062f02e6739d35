package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"doceria/internal/cart"
	"doceria/internal/catalog"
	"doceria/internal/eventlog"
	"doceria/internal/logger"
	"doceria/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(context.Background(), "", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

// memStore is a cart.Store backed by a plain map.
type memStore map[string]json.RawMessage

func (m memStore) Get(key string, dst any) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m memStore) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}

func (m memStore) Delete(key string) { delete(m, key) }

func (m memStore) clone() memStore {
	out := make(memStore, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type fakeCatalog map[int64]*catalog.Item

func (f fakeCatalog) GetItem(_ context.Context, id int64) (*catalog.Item, error) {
	item, ok := f[id]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		1: {ID: 1, Name: "Brigadeiro", UnitPrice: decimal.RequireFromString("5.00"), Available: true},
		2: {ID: 2, Name: "Sensação", UnitPrice: decimal.RequireFromString("6.00"), Available: true},
	}
}

type fixture struct {
	db     *storage.DB
	items  fakeCatalog
	carts  cart.Service
	ledger *SQLLedger
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, setupTestDB(t))
}

func newFixtureOn(t *testing.T, db *storage.DB) *fixture {
	t.Helper()

	items := testCatalog()
	carts := cart.NewService(items, logger.Discard())
	ledger := NewSQLLedger(db)
	return &fixture{
		db:     db,
		items:  items,
		carts:  carts,
		ledger: ledger,
		svc:    NewService(ledger, carts, logger.Discard()),
	}
}

func (f *fixture) fill(t *testing.T, st cart.Store) {
	t.Helper()

	_, err := f.carts.AddOrUpdate(context.Background(), st, 1, 2)
	require.NoError(t, err)
	_, err = f.carts.AddOrUpdate(context.Background(), st, 2, 1)
	require.NoError(t, err)
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

var contact = Customer{Name: "Ana", Phone: "11 99999-0000", Address: "Rua das Flores, 10"}

func TestCheckout_Scenario(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	ctx := context.Background()

	before := f.carts.View(st).Total
	assert.Equal(t, "16.00", before.StringFixed(2))

	o, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	assert.Equal(t, "16.00", o.Total.StringFixed(2))
	assert.False(t, o.CreatedAt.IsZero())

	assert.True(t, f.carts.Load(st).IsEmpty())
	assert.True(t, f.svc.PlacedInSession(st, o.ID))

	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.CustomerName)
	assert.True(t, stored.Total.Equal(before))
	assert.True(t, stored.LinesTotal().Equal(stored.Total))
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, "Brigadeiro", stored.Lines[0].ItemName)
	assert.Equal(t, 2, stored.Lines[0].Quantity)
	assert.Equal(t, "5.00", stored.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "Sensação", stored.Lines[1].ItemName)
	assert.Equal(t, 1, stored.Lines[1].Quantity)
	assert.Equal(t, "6.00", stored.Lines[1].UnitPrice.StringFixed(2))

	assert.Equal(t, 1, f.count(t, "orders"))
	assert.Equal(t, 2, f.count(t, "order_lines"))

	events, err := eventlog.NewReader(f.db.DB).ForAggregate(ctx, "order", "1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "OrderPlaced", events[0].EventType)
}

func TestCheckout_UsesCartSnapshotNotLivePrice(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)

	f.items[1].UnitPrice = decimal.NewFromInt(100)

	o, err := f.svc.Checkout(context.Background(), st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)
	assert.Equal(t, "16.00", o.Total.StringFixed(2))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), memStore{}, CheckoutRequest{Customer: contact})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.count(t, "orders"))
	assert.Zero(t, f.count(t, "events"))
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)

	_, err := f.svc.Checkout(context.Background(), st, CheckoutRequest{Customer: Customer{Name: "  Ana "}})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "phone", verr.Fields[0].Field)
	assert.Equal(t, "address", verr.Fields[1].Field)

	assert.Zero(t, f.count(t, "orders"))
	assert.False(t, f.carts.Load(st).IsEmpty())
}

func TestCheckout_FieldTooLong(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)

	c := contact
	c.Phone = "0123456789012345678901"
	_, err := f.svc.Checkout(context.Background(), st, CheckoutRequest{Customer: c})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "phone exceeds 20 characters")
}

func TestCheckout_IdentityReferenceSuffices(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	ctx := context.Background()

	var identityID int64
	err := f.db.QueryRow(`
		INSERT INTO identities (handle, credential_hash, role, created_at)
		VALUES ('ana', 'x', 'customer', CURRENT_TIMESTAMP) RETURNING id
	`).Scan(&identityID)
	require.NoError(t, err)

	o, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: Customer{IdentityID: &identityID}})
	require.NoError(t, err)

	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.IdentityID)
	assert.Equal(t, identityID, *stored.IdentityID)
}

func TestCheckout_PersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)

	// a line that violates the quantity check fails after the order row
	// was inserted
	c := f.carts.Load(st)
	c.Lines[2] = cart.Line{ItemID: 2, Name: "Sensação", UnitPrice: decimal.NewFromInt(6), Quantity: 0}
	require.NoError(t, st.Set("cart", c))
	before := f.carts.View(st)

	_, err := f.svc.Checkout(context.Background(), st, CheckoutRequest{Customer: contact})
	require.ErrorIs(t, err, ErrOrderPersistence)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Error(t, errors.Unwrap(perr))

	assert.Zero(t, f.count(t, "orders"))
	assert.Zero(t, f.count(t, "order_lines"))
	assert.Zero(t, f.count(t, "events"))
	assert.Equal(t, before, f.carts.View(st))
}

type failingLedger struct {
	Ledger
}

func (failingLedger) Create(context.Context, *Order) error {
	return errors.New("connection reset")
}

func TestCheckout_LedgerFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	svc := NewService(failingLedger{f.ledger}, f.carts, logger.Discard())

	_, err := svc.Checkout(context.Background(), st, CheckoutRequest{Customer: contact})
	require.ErrorIs(t, err, ErrOrderPersistence)
	assert.ErrorContains(t, err, "connection reset")
	assert.Len(t, f.carts.View(st).Lines, 2)
}

func TestCheckout_ConcurrentDuplicateSubmission(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	ctx := context.Background()

	// two requests that loaded the same session before either saved it
	racing := st.clone()

	first, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)
	second, err := f.svc.Checkout(ctx, racing, CheckoutRequest{Customer: contact})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.count(t, "orders"))
	assert.True(t, f.carts.Load(racing).IsEmpty())
}

func TestCheckout_ResubmittedFormReplaysOrder(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	ctx := context.Background()
	token := f.carts.View(st).Token

	first, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact, Token: token})
	require.NoError(t, err)

	again, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact, Token: token})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, f.count(t, "orders"))

	_, err = f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact, Token: "unknown"})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_NewCartContentIsNewOrder(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	ctx := context.Background()

	f.fill(t, st)
	_, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)

	f.fill(t, st)
	_, err = f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)

	assert.Equal(t, 2, f.count(t, "orders"))
	assert.Equal(t, 4, f.count(t, "order_lines"))
}

func TestLedger_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	ctx := context.Background()

	o, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteOrder(ctx, o.ID))
	assert.Zero(t, f.count(t, "orders"))
	assert.Zero(t, f.count(t, "order_lines"))

	_, err = f.svc.GetOrder(ctx, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.ErrorIs(t, f.svc.DeleteOrder(ctx, o.ID), ErrOrderNotFound)
}

func TestLedger_Recent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		st := memStore{}
		f.fill(t, st)
		_, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact})
		require.NoError(t, err)
	}

	orders, err := f.svc.RecentOrders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Greater(t, orders[0].ID, orders[1].ID)
	assert.Len(t, orders[0].Lines, 2)
}

func TestLedger_DuplicateKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	newOrder := func() *Order {
		return &Order{
			CustomerName: "Ana", CustomerPhone: "1", CustomerAddress: "x",
			Total:          decimal.NewFromInt(5),
			IdempotencyKey: "k-1",
			Lines:          []Line{{ItemName: "Brigadeiro", Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
		}
	}

	require.NoError(t, f.ledger.Create(ctx, newOrder()))
	err := f.ledger.Create(ctx, newOrder())
	assert.ErrorIs(t, err, errDuplicateCheckout)

	found, err := f.ledger.FindByIdempotencyKey(ctx, "k-1")
	require.NoError(t, err)
	assert.Len(t, found.Lines, 1)
}

func TestErrorTypes(t *testing.T) {
	verr := &ValidationError{Fields: []FieldError{{Field: "name", Reason: "is required"}}}
	assert.ErrorIs(t, verr, ErrValidation)
	assert.NotErrorIs(t, verr, ErrOrderPersistence)
	assert.Equal(t, "invalid checkout details: name is required", verr.Error())

	cause := errors.New("disk full")
	perr := &PersistenceError{Err: cause}
	assert.ErrorIs(t, perr, ErrOrderPersistence)
	assert.ErrorIs(t, perr, cause)
}

func TestCheckout_TokenFromAnotherSessionIsNotReplayed(t *testing.T) {
	f := newFixture(t)
	st := memStore{}
	f.fill(t, st)
	ctx := context.Background()
	token := f.carts.View(st).Token

	_, err := f.svc.Checkout(ctx, st, CheckoutRequest{Customer: contact, Token: token})
	require.NoError(t, err)

	other := memStore{}
	o, err := f.svc.Checkout(ctx, other, CheckoutRequest{Customer: contact, Token: token})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, o)
}

type unreachableLedger struct {
	Ledger
}

func (unreachableLedger) FindByIdempotencyKey(context.Context, string) (*Order, error) {
	return nil, errors.New("connection refused")
}

func TestCheckout_ReplayLookupFailureIsReported(t *testing.T) {
	f := newFixture(t)
	svc := NewService(unreachableLedger{f.ledger}, f.carts, logger.Discard())

	_, err := svc.Checkout(context.Background(), memStore{}, CheckoutRequest{Customer: contact, Token: "abc"})
	require.ErrorIs(t, err, ErrOrderPersistence)
	assert.NotErrorIs(t, err, ErrEmptyCart)
	assert.ErrorContains(t, err, "connection refused")

	// without a token there is nothing to look up
	_, err = svc.Checkout(context.Background(), memStore{}, CheckoutRequest{Customer: contact})
	assert.ErrorIs(t, err, ErrEmptyCart)
}
