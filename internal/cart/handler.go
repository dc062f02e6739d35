// internal/cart/handler.go
package cart

import (
	"errors"
	"log/slog"
	"net/http"

	"doceria/internal/catalog"
	"doceria/internal/session"
	"doceria/internal/web"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service  Service
	renderer *web.Renderer
	logger   *slog.Logger
}

func NewHandler(service Service, renderer *web.Renderer, logger *slog.Logger) *Handler {
	return &Handler{service: service, renderer: renderer, logger: logger}
}

type cartPage struct {
	View          View
	CheckoutToken string
	Authenticated bool
}

// HandleAdd handles the menu's add form. Failures leave the cart as it was.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	itemID, err := ParseItemID(r.FormValue("item_id"))
	if err != nil {
		h.fail(w, r, sess, err, "/cardapio")
		return
	}
	quantity, err := ParseQuantity(r.FormValue("quantity"))
	if err != nil {
		h.fail(w, r, sess, err, "/cardapio")
		return
	}

	res, err := h.service.AddOrUpdate(r.Context(), sess, itemID, quantity)
	if err != nil {
		h.fail(w, r, sess, err, "/cardapio")
		return
	}

	switch {
	case res.Removed:
		web.AddFlash(sess, web.FlashInfo, "%s removido do carrinho.", res.Item.Name)
	case res.Quantity > 0:
		web.AddFlash(sess, web.FlashSuccess, "%dx %s adicionado(s) ao carrinho!", res.Quantity, res.Item.Name)
	}
	h.renderer.Redirect(w, r, "/cardapio")
}

// HandleView shows the cart and the checkout form.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	view := h.service.View(sess)

	h.renderer.Page(w, r, "cart", "Carrinho", cartPage{
		View:          view,
		CheckoutToken: view.Token,
		Authenticated: h.renderer.Viewer(r).LoggedIn(),
	})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	itemID, err := ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, sess, err, "/carrinho")
		return
	}

	line, err := h.service.Remove(sess, itemID)
	if err != nil {
		h.fail(w, r, sess, err, "/carrinho")
		return
	}
	if line != nil {
		web.AddFlash(sess, web.FlashInfo, "%s removido do carrinho.", line.Name)
	}
	h.renderer.Redirect(w, r, "/carrinho")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, err error, back string) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		web.AddFlash(sess, web.FlashDanger, "Trufa não encontrada!")
	case errors.Is(err, catalog.ErrItemUnavailable):
		web.AddFlash(sess, web.FlashWarning, "Esta trufa não está disponível no momento.")
	case errors.Is(err, ErrInvalidQuantity):
		web.AddFlash(sess, web.FlashDanger, "Quantidade inválida (máximo %d).", MaxQuantity)
	default:
		h.logger.Error("cart update failed", slog.Any("err", err))
		web.AddFlash(sess, web.FlashDanger, "Erro ao atualizar o carrinho.")
	}
	h.renderer.Redirect(w, r, back)
}
