// internal/identity/domain.go
package identity

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrDuplicateHandle    = errors.New("handle already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("administrator role required")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInvalidHandle      = errors.New("handle must be 3 to 100 characters")
	ErrWeakCredential     = errors.New("credential must be at least 8 characters")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

const (
	minHandleLen     = 3
	maxHandleLen     = 100
	minCredentialLen = 8
	maxCredentialLen = 1024
)

// Identity is a customer or administrator account.
type Identity struct {
	ID             int64     `json:"id"`
	Handle         string    `json:"handle"`
	Role           Role      `json:"role"`
	CredentialHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (i *Identity) Principal() Principal {
	return Principal{ID: i.ID, Handle: i.Handle, Role: i.Role}
}

// Principal is what the session remembers about a signed-in identity.
type Principal struct {
	ID     int64  `json:"id"`
	Handle string `json:"handle"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IdentityRegisteredEvent is appended when an account is created. It never
// carries the credential.
type IdentityRegisteredEvent struct {
	ID     int64  `json:"id"`
	Handle string `json:"handle"`
	Role   Role   `json:"role"`
}

// NormalizeHandle trims and lower-cases a handle and checks its length.
func NormalizeHandle(raw string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(raw))
	if n := utf8.RuneCountInString(h); n < minHandleLen || n > maxHandleLen {
		return "", ErrInvalidHandle
	}
	return h, nil
}

func checkCredential(credential string) error {
	if n := utf8.RuneCountInString(credential); n < minCredentialLen || n > maxCredentialLen {
		return ErrWeakCredential
	}
	return nil
}
