// internal/catalog/handler.go
package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"doceria/internal/session"
	"doceria/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service  Service
	renderer *web.Renderer
	logger   *slog.Logger
}

func NewHandler(service Service, renderer *web.Renderer, logger *slog.Logger) *Handler {
	return &Handler{service: service, renderer: renderer, logger: logger}
}

type menuPage struct {
	Items []Item
}

// HandleMenu lists the items currently on sale.
func (h *Handler) HandleMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.logger.Error("list catalog failed", slog.Any("err", err))
		h.renderer.Status(w, r, http.StatusInternalServerError, "Erro ao aceder ao cardápio.")
		return
	}

	available := items[:0]
	for _, item := range items {
		if item.Available {
			available = append(available, item)
		}
	}

	h.renderer.Page(w, r, "menu", "Cardápio", menuPage{Items: available})
}

// HandleUpdateItem is the administrator's reprice / availability form.
func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		web.AddFlash(sess, web.FlashDanger, "Trufa não encontrada!")
		h.renderer.Redirect(w, r, "/admin")
		return
	}

	price, err := ParsePrice(r.FormValue("price"))
	if err != nil {
		web.AddFlash(sess, web.FlashDanger, "Preço inválido.")
		h.renderer.Redirect(w, r, "/admin")
		return
	}
	available := r.FormValue("available") != ""

	item, err := h.service.UpdateItem(r.Context(), id, price, available)
	switch {
	case errors.Is(err, ErrItemNotFound):
		web.AddFlash(sess, web.FlashDanger, "Trufa não encontrada!")
	case errors.Is(err, ErrInvalidPrice):
		web.AddFlash(sess, web.FlashDanger, "Preço inválido.")
	case err != nil:
		h.logger.Error("update item failed", slog.Int64("item_id", id), slog.Any("err", err))
		web.AddFlash(sess, web.FlashDanger, "Erro ao atualizar a trufa.")
	default:
		web.AddFlash(sess, web.FlashSuccess, "%s atualizada.", item.Name)
	}
	h.renderer.Redirect(w, r, "/admin")
}

// ParsePrice accepts "5.50", "5,50" and an optional "R$" prefix.
func ParsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "R$"))
	raw = strings.Replace(raw, ",", ".", 1)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return d, nil
}
