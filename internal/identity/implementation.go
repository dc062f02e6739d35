// internal/identity/implementation.go
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"doceria/internal/eventlog"
	"doceria/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("doceria/identity")

// service implements the Service interface.
type service struct {
	db          *storage.DB
	hasher      Hasher
	rateLimiter *rate.Limiter
	dummyHash   string
	logger      *slog.Logger
}

// NewService creates a new identity service instance. limiter bounds
// registration and authentication attempts; nil means unlimited.
func NewService(db *storage.DB, hasher Hasher, limiter *rate.Limiter, logger *slog.Logger) (Service, error) {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	// verified against when a handle is unknown so both failures cost the same
	dummy, err := hasher.Hash("doceria-unknown-handle")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &service{
		db:          db,
		hasher:      hasher,
		rateLimiter: limiter,
		dummyHash:   dummy,
		logger:      logger,
	}, nil
}

// Register creates a customer account.
func (s *service) Register(ctx context.Context, handle, credential string) (*Identity, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	handle, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if err := checkCredential(credential); err != nil {
		return nil, err
	}

	identity, err := s.insert(ctx, handle, credential, RoleCustomer)
	if err != nil {
		return nil, err
	}
	s.logger.Info("identity registered", slog.Int64("identity_id", identity.ID), slog.String("handle", identity.Handle))
	return identity, nil
}

func (s *service) insert(ctx context.Context, handle, credential string, role Role) (*Identity, error) {
	hash, err := s.hasher.Hash(credential)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	identity := &Identity{
		Handle:         handle,
		Role:           role,
		CredentialHash: hash,
		CreatedAt:      time.Now().UTC(),
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO identities (handle, credential_hash, role, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, identity.Handle, identity.CredentialHash, string(identity.Role), identity.CreatedAt).Scan(&identity.ID)
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return ErrDuplicateHandle
			}
			return fmt.Errorf("insert identity: %w", err)
		}

		return eventlog.Append(ctx, tx, "identity", strconv.FormatInt(identity.ID, 10), "IdentityRegistered", IdentityRegisteredEvent{
			ID:     identity.ID,
			Handle: identity.Handle,
			Role:   identity.Role,
		})
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// Authenticate verifies a handle and credential. Unknown handles and wrong
// credentials both yield ErrInvalidCredentials.
func (s *service) Authenticate(ctx context.Context, handle, credential string) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "identity.authenticate")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	normalized, err := NormalizeHandle(handle)
	if err != nil {
		s.burnVerify(credential)
		return nil, ErrInvalidCredentials
	}

	identity, err := s.getIdentityByHandle(ctx, normalized)
	if errors.Is(err, sql.ErrNoRows) {
		s.burnVerify(credential)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := s.hasher.Verify(credential, identity.CredentialHash)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	span.SetAttributes(attribute.Int64("identity.id", identity.ID))
	return identity, nil
}

func (s *service) burnVerify(credential string) {
	_, _ = s.hasher.Verify(credential, s.dummyHash)
}

// EnsureAdmin makes handle an administrator, creating the account with
// credential when it does not exist yet. An existing credential is kept.
func (s *service) EnsureAdmin(ctx context.Context, handle, credential string) (*Identity, error) {
	handle, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}

	identity, err := s.getIdentityByHandle(ctx, handle)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := checkCredential(credential); err != nil {
			return nil, err
		}
		identity, err = s.insert(ctx, handle, credential, RoleAdmin)
		if err != nil {
			return nil, err
		}
		s.logger.Info("administrator created", slog.String("handle", handle))
		return identity, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up administrator: %w", err)
	}

	if identity.Role == RoleAdmin {
		return identity, nil
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE identities SET role = $1 WHERE id = $2`, string(RoleAdmin), identity.ID); err != nil {
		return nil, fmt.Errorf("failed to promote administrator: %w", err)
	}
	identity.Role = RoleAdmin
	s.logger.Info("identity promoted to administrator", slog.String("handle", handle))
	return identity, nil
}

func (s *service) getIdentityByHandle(ctx context.Context, handle string) (*Identity, error) {
	return s.scanIdentity(s.db.QueryRowContext(ctx, `
		SELECT id, handle, credential_hash, role, created_at
		FROM identities
		WHERE handle = $1
	`, handle))
}

func (s *service) scanIdentity(row *sql.Row) (*Identity, error) {
	identity := &Identity{}
	var role string
	err := row.Scan(
		&identity.ID,
		&identity.Handle,
		&identity.CredentialHash,
		&role,
		&identity.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	identity.Role = Role(role)
	return identity, nil
}
