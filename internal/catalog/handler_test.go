package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"doceria/internal/logger"
	"doceria/internal/session"
	"doceria/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T) (*Handler, Service, http.Handler) {
	t.Helper()

	svc, _ := seeded(t, nil)
	mgr := session.NewManager(session.NewMemoryStore(), session.Options{TTL: time.Hour}, logger.Discard())
	renderer, err := web.NewRenderer(mgr, nil, logger.Discard())
	require.NoError(t, err)

	h := NewHandler(svc, renderer, logger.Discard())
	r := chi.NewRouter()
	r.Use(mgr.Middleware)
	r.Get("/cardapio", h.HandleMenu)
	r.Post("/admin/itens/{itemID}", h.HandleUpdateItem)
	return h, svc, r
}

func TestHandleMenu_HidesUnavailable(t *testing.T) {
	_, svc, router := setupHandler(t)
	_, err := svc.UpdateItem(context.Background(), 2, decimal.NewFromInt(5), false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cardapio", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Brigadeiro")
	assert.Contains(t, body, "R$ 5,00")
	assert.NotContains(t, body, "Trufa de leite em pó")
}

func TestHandleUpdateItem(t *testing.T) {
	_, svc, router := setupHandler(t)

	form := url.Values{"price": {"6,25"}, "available": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/itens/1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	item, err := svc.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "6.25", item.UnitPrice.StringFixed(2))
	assert.True(t, item.Available)
}

func TestHandleUpdateItem_BadInput(t *testing.T) {
	_, svc, router := setupHandler(t)

	for _, target := range []string{"/admin/itens/abc", "/admin/itens/999", "/admin/itens/1"} {
		form := url.Values{"price": {"-3"}}
		if target != "/admin/itens/1" {
			form.Set("price", "1")
		}
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code, target)
	}

	item, err := svc.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "5.00", item.UnitPrice.StringFixed(2))
}
