// internal/session/session.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is the per-client state carried between requests. Values are kept
// as JSON so any store can persist them verbatim.
type Session struct {
	ID        string                     `json:"id"`
	Values    map[string]json.RawMessage `json:"values"`
	ExpiresAt time.Time                  `json:"expires_at"`

	modified bool
	fresh    bool
}

func newSession(id string, expiresAt time.Time) *Session {
	return &Session{
		ID:        id,
		Values:    make(map[string]json.RawMessage),
		ExpiresAt: expiresAt,
		fresh:     true,
	}
}

// Get decodes the value stored under key into dst. It reports false when the
// key is absent.
func (s *Session) Get(key string, dst any) (bool, error) {
	raw, ok := s.Values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode session key %q: %w", key, err)
	}
	return true, nil
}

// Set stores v under key.
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session key %q: %w", key, err)
	}
	if s.Values == nil {
		s.Values = make(map[string]json.RawMessage)
	}
	s.Values[key] = raw
	s.modified = true
	return nil
}

// Delete removes key; a missing key is not an error.
func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; ok {
		delete(s.Values, key)
		s.modified = true
	}
}

// Has reports whether key is present.
func (s *Session) Has(key string) bool {
	_, ok := s.Values[key]
	return ok
}

// Clear drops every value while keeping the session id.
func (s *Session) Clear() {
	if len(s.Values) > 0 {
		s.modified = true
	}
	s.Values = make(map[string]json.RawMessage)
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool { return s.modified }

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.fresh }
