// internal/identity/service.go
package identity

import (
	"context"
)

// Service defines the interface for the identity service.
type Service interface {
	Register(ctx context.Context, handle, credential string) (*Identity, error)
	Authenticate(ctx context.Context, handle, credential string) (*Identity, error)
	EnsureAdmin(ctx context.Context, handle, credential string) (*Identity, error)
}
