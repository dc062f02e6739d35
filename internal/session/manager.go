// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const DefaultCookieName = "doceria_session"

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager binds sessions to clients through a cookie carrying the session id.
type Manager struct {
	store  Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, opts Options, logger *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the session named by the request cookie, or a fresh one when
// the cookie is missing, unknown or expired.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return m.fresh(), nil
	}

	if _, err := uuid.Parse(cookie.Value); err != nil {
		return m.fresh(), nil
	}

	s, err := m.store.Load(ctx, cookie.Value)
	if errors.Is(err, ErrNotFound) {
		return m.fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	if !s.ExpiresAt.After(m.now()) {
		return m.fresh(), nil
	}
	return s, nil
}

func (m *Manager) fresh() *Session {
	return newSession(uuid.NewString(), m.now().Add(m.opts.TTL))
}

// Save extends the session lifetime, persists it and (re)issues the cookie.
// It must run before the response header is written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.ExpiresAt = m.now().Add(m.opts.TTL)
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.opts.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.modified = false
	s.fresh = false
	return nil
}

// Renew moves the session to a new id, dropping the old one from the store.
// Used on login and logout.
func (m *Manager) Renew(ctx context.Context, s *Session) error {
	old := s.ID
	s.ID = uuid.NewString()
	s.modified = true

	if err := m.store.Delete(ctx, old); err != nil {
		return fmt.Errorf("delete old session: %w", err)
	}
	return nil
}

type ctxKey struct{}

// Middleware loads the session and attaches it to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(r.Context(), r)
		if err != nil {
			m.logger.Error("session load failed", slog.Any("err", err))
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request session; nil when the middleware did not run.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
