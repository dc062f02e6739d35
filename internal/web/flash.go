// internal/web/flash.go
package web

import (
	"fmt"

	"doceria/internal/session"
)

const flashKey = "_flashes"

// Flash categories, matching the stylesheet classes.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// AddFlash queues a message for the next rendered page of this session.
func AddFlash(s *session.Session, category, format string, args ...any) {
	var flashes []Flash
	// A corrupt flash list is replaced rather than reported.
	_, _ = s.Get(flashKey, &flashes)

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	flashes = append(flashes, Flash{Category: category, Message: msg})
	_ = s.Set(flashKey, flashes)
}

// PopFlashes returns and removes the queued messages.
func PopFlashes(s *session.Session) []Flash {
	var flashes []Flash
	if ok, err := s.Get(flashKey, &flashes); !ok || err != nil {
		s.Delete(flashKey)
		return nil
	}
	s.Delete(flashKey)
	return flashes
}
