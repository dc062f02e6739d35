// internal/identity/handler.go
package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"doceria/internal/session"
	"doceria/internal/web"
)

type Handler struct {
	service  Service
	sessions *session.Manager
	renderer *web.Renderer
	logger   *slog.Logger
}

func NewHandler(service Service, sessions *session.Manager, renderer *web.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		renderer: renderer,
		logger:   logger,
	}
}

type authPage struct {
	Handle string
	Next   string
}

func (h *Handler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Page(w, r, "login", "Entrar", authPage{Next: r.URL.Query().Get("next")})
}

// HandleLogin authenticates and moves the session to a new id before
// recording the principal.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	handle := r.FormValue("handle")
	next := safeNext(r.FormValue("next"))

	identity, err := h.service.Authenticate(r.Context(), handle, r.FormValue("credential"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			web.AddFlash(sess, web.FlashDanger, "Utilizador ou senha inválidos.")
		case errors.Is(err, ErrRateLimited):
			web.AddFlash(sess, web.FlashWarning, "Muitas tentativas. Aguarde um momento.")
		default:
			h.logger.Error("authentication error", slog.Any("err", err))
			web.AddFlash(sess, web.FlashDanger, "Erro ao entrar. Tente novamente.")
		}
		h.renderer.Redirect(w, r, "/login?next="+url.QueryEscape(next))
		return
	}

	if err := h.sessions.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("session renew failed", slog.Any("err", err))
	}
	if err := SignIn(sess, identity.Principal()); err != nil {
		h.logger.Error("sign in failed", slog.Any("err", err))
		h.renderer.Status(w, r, http.StatusInternalServerError, "Erro ao entrar.")
		return
	}

	h.logger.Info("identity signed in", slog.Int64("identity_id", identity.ID))
	web.AddFlash(sess, web.FlashSuccess, "Bem-vindo, %s!", identity.Handle)
	if identity.Role == RoleAdmin && next == "/cardapio" {
		next = "/admin"
	}
	h.renderer.Redirect(w, r, next)
}

func (h *Handler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Page(w, r, "register", "Registrar", authPage{})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	identity, err := h.service.Register(r.Context(), r.FormValue("handle"), r.FormValue("credential"))
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateHandle):
			web.AddFlash(sess, web.FlashDanger, "Este utilizador já existe.")
		case errors.Is(err, ErrInvalidHandle):
			web.AddFlash(sess, web.FlashDanger, "O utilizador deve ter entre 3 e 100 caracteres.")
		case errors.Is(err, ErrWeakCredential):
			web.AddFlash(sess, web.FlashDanger, "A senha deve ter pelo menos 8 caracteres.")
		case errors.Is(err, ErrRateLimited):
			web.AddFlash(sess, web.FlashWarning, "Muitas tentativas. Aguarde um momento.")
		default:
			h.logger.Error("registration error", slog.Any("err", err))
			web.AddFlash(sess, web.FlashDanger, "Erro ao registrar. Tente novamente.")
		}
		h.renderer.Redirect(w, r, "/registrar")
		return
	}

	web.AddFlash(sess, web.FlashSuccess, "Conta %s criada! Faça login.", identity.Handle)
	h.renderer.Redirect(w, r, "/login")
}

// HandleLogout drops the principal and everything else in the session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	sess.Clear()
	if err := h.sessions.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("session renew failed", slog.Any("err", err))
	}

	web.AddFlash(sess, web.FlashInfo, "Sessão terminada.")
	h.renderer.Redirect(w, r, "/")
}
