// service holds the business logic of the vault: tenant signup and login,
// the access/refresh token lifecycle with revocation, encrypted storage of
// external connection strings and per-tenant connect/disconnect.
//
// Service keeps no per-request state and is safe for concurrent use as long
// as its collaborators are.
//
// Errors returned to the transport are the sentinels below (wrapped with
// context via %w); storage, session, registry and cipher errors never leak
// past this package unmapped.
package service

//go:generate mockgen -source=service.go -destination=../../mocks/connections.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/metrics"
	"github.com/JosephRemingston/insightAI/internal/pkg/secret"
	"github.com/JosephRemingston/insightAI/internal/pkg/token"
	"github.com/JosephRemingston/insightAI/internal/registry"
	"github.com/JosephRemingston/insightAI/internal/session"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

var (
	// ErrInvalidEmail: malformed email at signup. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyPassword: empty password at signup. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrInvalidArgument: any other malformed request field. HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidCredentials: unknown email or wrong password. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken: token missing, forged, malformed or expired, or no
	// refresh token is stored for the tenant. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenRevoked: access token blacklisted, or refresh token superseded
	// by a later login. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrUserNotFound: token is valid but its tenant no longer exists. HTTP 401.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken: email already registered. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrAlreadyConnected: tenant already holds a live connection. HTTP 409.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectionNotFound: no such credential record for this tenant. HTTP 404.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrNotConnected: disconnect without a live connection. HTTP 400.
	ErrNotConnected = errors.New("not connected")

	// ErrIntegrity: stored credential failed authentication on decrypt. HTTP 422.
	ErrIntegrity = errors.New("credential integrity check failed")

	// ErrUpstream: external database unreachable or refused. HTTP 502.
	ErrUpstream = errors.New("external database unavailable")
)

// Connections is the subset of the connection registry the service uses.
type Connections interface {
	Open(ctx context.Context, tenantID uuid.UUID, uri, name string) (*registry.Handle, error)
	Close(ctx context.Context, tenantID uuid.UUID) error
	Status(tenantID uuid.UUID) registry.Status
	IsOpen(tenantID uuid.UUID) bool
}

// Service describes the vault business logic.
type Service struct {
	storage  storage.Storage
	sessions session.Store
	tokens   *token.Manager
	cipher   *secret.Cipher
	conns    Connections
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a Service.
func New(
	st storage.Storage,
	sessions session.Store,
	tokens *token.Manager,
	cipher *secret.Cipher,
	conns Connections,
) *Service {
	return &Service{
		storage:  st,
		sessions: sessions,
		tokens:   tokens,
		cipher:   cipher,
		conns:    conns,
		now:      time.Now,
	}
}

// SetMetrics enables auth event metrics (optional).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}
