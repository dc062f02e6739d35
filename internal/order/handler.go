// internal/order/handler.go
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"doceria/internal/catalog"
	"doceria/internal/eventlog"
	"doceria/internal/session"
	"doceria/internal/web"

	"github.com/go-chi/chi/v5"
)

// ItemLister feeds the admin dashboard's catalog table.
type ItemLister interface {
	ListItems(ctx context.Context) ([]catalog.Item, error)
}

// EventReader feeds the admin dashboard's activity list.
type EventReader interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Event, error)
}

type Handler struct {
	service  Service
	items    ItemLister
	events   EventReader
	renderer *web.Renderer
	logger   *slog.Logger
}

func NewHandler(service Service, items ItemLister, events EventReader, renderer *web.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		items:    items,
		events:   events,
		renderer: renderer,
		logger:   logger,
	}
}

var fieldLabels = map[string]string{
	"name":    "nome",
	"phone":   "telefone",
	"address": "endereço",
}

// HandleCheckout places the order and redirects to its confirmation page.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	customer := Customer{
		Name:    r.FormValue("customer_name"),
		Phone:   r.FormValue("customer_phone"),
		Address: r.FormValue("customer_address"),
	}
	viewer := h.renderer.Viewer(r)
	if viewer.LoggedIn() {
		id := viewer.ID
		customer.IdentityID = &id
		if customer.Name == "" {
			customer.Name = viewer.Handle
		}
	}

	o, err := h.service.Checkout(r.Context(), sess, CheckoutRequest{
		Customer: customer,
		Token:    r.FormValue("checkout_token"),
	})

	var verr *ValidationError
	switch {
	case errors.Is(err, ErrEmptyCart):
		web.AddFlash(sess, web.FlashDanger, "O seu carrinho está vazio.")
		h.renderer.Redirect(w, r, "/carrinho")
		return
	case errors.As(err, &verr):
		missing := make([]string, len(verr.Fields))
		for i, f := range verr.Fields {
			missing[i] = fieldLabels[f.Field]
		}
		web.AddFlash(sess, web.FlashDanger, "Verifique os campos: %s.", strings.Join(missing, ", "))
		h.renderer.Redirect(w, r, "/carrinho")
		return
	case err != nil:
		h.logger.Error("checkout failed", slog.Any("err", err))
		web.AddFlash(sess, web.FlashDanger, "Erro ao processar o seu pedido. O carrinho foi mantido, tente novamente.")
		h.renderer.Redirect(w, r, "/carrinho")
		return
	}

	web.AddFlash(sess, web.FlashSuccess, "Pedido realizado com sucesso!")
	h.renderer.Redirect(w, r, fmt.Sprintf("/pedidos/%d", o.ID))
}

// HandleConfirmation shows an order to the session that placed it, its
// account owner, or an administrator. Anyone else gets a 404.
func (h *Handler) HandleConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		h.renderer.Status(w, r, http.StatusNotFound, "Pedido não encontrado.")
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if errors.Is(err, ErrOrderNotFound) {
		h.renderer.Status(w, r, http.StatusNotFound, "Pedido não encontrado.")
		return
	}
	if err != nil {
		h.logger.Error("get order failed", slog.Int64("order_id", id), slog.Any("err", err))
		h.renderer.Status(w, r, http.StatusInternalServerError, "Erro ao carregar o pedido.")
		return
	}

	if !h.canView(r, o) {
		h.renderer.Status(w, r, http.StatusNotFound, "Pedido não encontrado.")
		return
	}

	h.renderer.Page(w, r, "confirmation", "Obrigado", o)
}

func (h *Handler) canView(r *http.Request, o *Order) bool {
	viewer := h.renderer.Viewer(r)
	switch {
	case viewer.Admin:
		return true
	case viewer.LoggedIn() && o.IdentityID != nil && *o.IdentityID == viewer.ID:
		return true
	}
	if sess := session.FromContext(r.Context()); sess != nil {
		return h.service.PlacedInSession(sess, o.ID)
	}
	return false
}

type dashboardPage struct {
	Orders []Order
	Items  []catalog.Item
	Events []eventlog.Event
}

// HandleDashboard is the administrator overview.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orders, err := h.service.RecentOrders(ctx, 50)
	if err != nil {
		h.dashboardError(w, r, err)
		return
	}
	items, err := h.items.ListItems(ctx)
	if err != nil {
		h.dashboardError(w, r, err)
		return
	}
	events, err := h.events.Recent(ctx, 20)
	if err != nil {
		h.dashboardError(w, r, err)
		return
	}

	h.renderer.Page(w, r, "admin", "Painel", dashboardPage{
		Orders: orders,
		Items:  items,
		Events: events,
	})
}

func (h *Handler) dashboardError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("dashboard failed", slog.Any("err", err))
	h.renderer.Status(w, r, http.StatusInternalServerError, "Erro ao carregar o painel.")
}

// HandleDelete removes an order together with its lines.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err == nil {
		err = h.service.DeleteOrder(r.Context(), id)
	} else {
		err = ErrOrderNotFound
	}

	switch {
	case errors.Is(err, ErrOrderNotFound):
		web.AddFlash(sess, web.FlashDanger, "Pedido não encontrado.")
	case err != nil:
		h.logger.Error("delete order failed", slog.Int64("order_id", id), slog.Any("err", err))
		web.AddFlash(sess, web.FlashDanger, "Erro ao excluir o pedido.")
	default:
		web.AddFlash(sess, web.FlashInfo, "Pedido %d excluído.", id)
	}
	h.renderer.Redirect(w, r, "/admin")
}
