// internal/web/render.go
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"doceria/internal/session"

	"github.com/shopspring/decimal"
)

//go:embed templates static
var assets embed.FS

var pages = []string{
	"home", "menu", "cart", "confirmation",
	"login", "register", "admin", "error",
}

// Viewer describes who is looking at a page, for navigation links.
type Viewer struct {
	ID     int64
	Handle string
	Admin  bool
}

func (v Viewer) LoggedIn() bool { return v.Handle != "" }

// ViewerFunc extracts the viewer from the session.
type ViewerFunc func(*session.Session) Viewer

type pageData struct {
	Title   string
	Flashes []Flash
	Viewer  Viewer
	Data    any
}

// Renderer executes the embedded page templates and persists the session
// before anything is written to the client.
type Renderer struct {
	templates map[string]*template.Template
	sessions  *session.Manager
	viewer    ViewerFunc
	logger    *slog.Logger
}

func NewRenderer(sessions *session.Manager, viewer ViewerFunc, logger *slog.Logger) (*Renderer, error) {
	if viewer == nil {
		viewer = func(*session.Session) Viewer { return Viewer{} }
	}

	funcs := template.FuncMap{
		"money": Money,
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(assets,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		sessions:  sessions,
		viewer:    viewer,
		logger:    logger,
	}, nil
}

// Money formats an amount the way prices are shown in the shop.
func Money(d decimal.Decimal) string {
	return "R$ " + strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// Viewer reports who owns the request session.
func (r *Renderer) Viewer(req *http.Request) Viewer {
	if sess := session.FromContext(req.Context()); sess != nil {
		return r.viewer(sess)
	}
	return Viewer{}
}

// Page renders name inside the layout with status 200.
func (r *Renderer) Page(w http.ResponseWriter, req *http.Request, name, title string, data any) {
	r.render(w, req, http.StatusOK, name, title, data)
}

// Status renders the error page with the given status code.
func (r *Renderer) Status(w http.ResponseWriter, req *http.Request, status int, message string) {
	r.render(w, req, status, "error", http.StatusText(status), message)
}

func (r *Renderer) render(w http.ResponseWriter, req *http.Request, status int, name, title string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("unknown template", slog.String("template", name))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pd := pageData{Title: title, Data: data}
	sess := session.FromContext(req.Context())
	if sess != nil {
		pd.Flashes = PopFlashes(sess)
		pd.Viewer = r.viewer(sess)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		r.logger.Error("render failed", slog.String("template", name), slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if sess != nil && (sess.Modified() || !sess.IsNew()) {
		if err := r.sessions.Save(req.Context(), w, sess); err != nil {
			r.logger.Error("session save failed", slog.Any("err", err))
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Redirect saves the session and sends a 303 to url.
func (r *Renderer) Redirect(w http.ResponseWriter, req *http.Request, url string) {
	if sess := session.FromContext(req.Context()); sess != nil {
		if err := r.sessions.Save(req.Context(), w, sess); err != nil {
			r.logger.Error("session save failed", slog.Any("err", err))
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	http.Redirect(w, req, url, http.StatusSeeOther)
}

// Static serves the embedded stylesheet and scripts.
func Static() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
