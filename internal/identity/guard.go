// internal/identity/guard.go
package identity

import (
	"net/http"
	"net/url"

	"doceria/internal/session"
	"doceria/internal/web"
)

const sessionKey = "identity"

// SignIn records p as the session's principal.
func SignIn(s *session.Session, p Principal) error {
	return s.Set(sessionKey, p)
}

// PrincipalFrom returns the session's principal, if any.
func PrincipalFrom(s *session.Session) (Principal, bool) {
	if s == nil {
		return Principal{}, false
	}
	var p Principal
	if ok, err := s.Get(sessionKey, &p); !ok || err != nil || p.ID == 0 {
		return Principal{}, false
	}
	return p, true
}

// Viewer adapts the principal for page rendering.
func Viewer(s *session.Session) web.Viewer {
	p, ok := PrincipalFrom(s)
	if !ok {
		return web.Viewer{}
	}
	return web.Viewer{ID: p.ID, Handle: p.Handle, Admin: p.IsAdmin()}
}

// Authorize checks the session against a required role.
func Authorize(s *session.Session, adminOnly bool) (Principal, error) {
	p, ok := PrincipalFrom(s)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	if adminOnly && !p.IsAdmin() {
		return p, ErrForbidden
	}
	return p, nil
}

// Guard turns authorization failures into redirects with a flash message.
type Guard struct {
	renderer *web.Renderer
}

func NewGuard(renderer *web.Renderer) *Guard {
	return &Guard{renderer: renderer}
}

func (g *Guard) RequireAuthenticated(next http.Handler) http.Handler {
	return g.require(false, next)
}

func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.require(true, next)
}

func (g *Guard) require(adminOnly bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())

		_, err := Authorize(sess, adminOnly)
		switch err {
		case nil:
			next.ServeHTTP(w, r)
		case ErrForbidden:
			web.AddFlash(sess, web.FlashDanger, "Acesso restrito a administradores.")
			g.renderer.Redirect(w, r, "/")
		default:
			if sess != nil {
				web.AddFlash(sess, web.FlashWarning, "Faça login para continuar.")
			}
			g.renderer.Redirect(w, r, loginURL(r))
		}
	})
}

func loginURL(r *http.Request) string {
	next := r.URL.Path
	if r.Method != http.MethodGet {
		next = "/cardapio"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return "/cardapio"
	}
	return next
}
