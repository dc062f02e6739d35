// internal/server/router.go
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"doceria/internal/cart"
	"doceria/internal/catalog"
	"doceria/internal/identity"
	"doceria/internal/order"
	"doceria/internal/session"
	"doceria/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is everything the router mounts.
type Deps struct {
	Sessions *session.Manager
	Renderer *web.Renderer
	Guard    *identity.Guard
	Catalog  *catalog.Handler
	Cart     *cart.Handler
	Order    *order.Handler
	Identity *identity.Handler
	DB       Pinger
	Logger   *slog.Logger

	// RequireLogin puts the shopping routes behind authentication.
	RequireLogin   bool
	RequestTimeout time.Duration
}

// NewRouter builds the storefront's HTTP handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Get("/healthz", healthz(d.DB))
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.Middleware)

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			d.Renderer.Page(w, req, "home", "Início", nil)
		})

		r.Get("/registrar", d.Identity.HandleRegisterForm)
		r.Post("/registrar", d.Identity.HandleRegister)
		r.Get("/login", d.Identity.HandleLoginForm)
		r.Post("/login", d.Identity.HandleLogin)
		r.Post("/logout", d.Identity.HandleLogout)

		r.Group(func(r chi.Router) {
			if d.RequireLogin {
				r.Use(d.Guard.RequireAuthenticated)
			}
			r.Get("/cardapio", d.Catalog.HandleMenu)
			r.Post("/carrinho/adicionar", d.Cart.HandleAdd)
			r.Get("/carrinho", d.Cart.HandleView)
			r.Post("/carrinho/remover/{itemID}", d.Cart.HandleRemove)
			r.Post("/checkout", d.Order.HandleCheckout)
			r.Get("/pedidos/{orderID}", d.Order.HandleConfirmation)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(d.Guard.RequireAdmin)
			r.Get("/", d.Order.HandleDashboard)
			r.Post("/itens/{itemID}", d.Catalog.HandleUpdateItem)
			r.Post("/pedidos/{orderID}/excluir", d.Order.HandleDelete)
		})

		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			d.Renderer.Status(w, req, http.StatusNotFound, "Página não encontrada.")
		})
	})

	return otelhttp.NewHandler(r, "doceria",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
