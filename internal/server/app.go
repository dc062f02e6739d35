// internal/server/app.go
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"doceria/internal/cart"
	"doceria/internal/catalog"
	"doceria/internal/eventlog"
	"doceria/internal/identity"
	"doceria/internal/order"
	"doceria/internal/session"
	"doceria/internal/storage"
	"doceria/internal/web"

	"golang.org/x/time/rate"
)

type Options struct {
	SessionStore session.Store
	MenuCache    catalog.Cache
	Hasher       identity.Hasher
	AuthLimiter  *rate.Limiter

	SessionTTL     time.Duration
	CookieSecure   bool
	RequireLogin   bool
	RequestTimeout time.Duration

	Logger *slog.Logger
}

// App is the assembled storefront.
type App struct {
	Handler  http.Handler
	Catalog  catalog.Service
	Identity identity.Service
	Orders   order.Service
}

// NewApp wires the services and handlers over db.
func NewApp(db *storage.DB, opts Options) (*App, error) {
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewMemoryStore()
	}
	if opts.MenuCache == nil {
		opts.MenuCache = catalog.NopCache{}
	}
	if opts.Hasher == nil {
		opts.Hasher = identity.NewArgon2Hasher(identity.DefaultArgon2Params)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	sessions := session.NewManager(opts.SessionStore, session.Options{
		TTL:    opts.SessionTTL,
		Secure: opts.CookieSecure,
	}, log.With("component", "session"))

	renderer, err := web.NewRenderer(sessions, identity.Viewer, log.With("component", "web"))
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	catalogSvc := catalog.NewService(db, opts.MenuCache, log.With("component", "catalog"))
	cartSvc := cart.NewService(catalogSvc, log.With("component", "cart"))
	orderSvc := order.NewService(order.NewSQLLedger(db), cartSvc, log.With("component", "order"))
	identitySvc, err := identity.NewService(db, opts.Hasher, opts.AuthLimiter, log.With("component", "identity"))
	if err != nil {
		return nil, err
	}

	handler := NewRouter(Deps{
		Sessions:       sessions,
		Renderer:       renderer,
		Guard:          identity.NewGuard(renderer),
		Catalog:        catalog.NewHandler(catalogSvc, renderer, log.With("component", "catalog")),
		Cart:           cart.NewHandler(cartSvc, renderer, log.With("component", "cart")),
		Order:          order.NewHandler(orderSvc, catalogSvc, eventlog.NewReader(db.DB), renderer, log.With("component", "order")),
		Identity:       identity.NewHandler(identitySvc, sessions, renderer, log.With("component", "identity")),
		DB:             db,
		Logger:         log,
		RequireLogin:   opts.RequireLogin,
		RequestTimeout: opts.RequestTimeout,
	})

	return &App{
		Handler:  handler,
		Catalog:  catalogSvc,
		Identity: identitySvc,
		Orders:   orderSvc,
	}, nil
}
