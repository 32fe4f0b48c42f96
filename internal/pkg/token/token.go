// token issues and verifies the two bearer token classes:
// short-lived access tokens and long-lived refresh tokens.
//
// Both are HS256 JWTs carrying the tenant id in the "uid" claim, but each
// class is signed with its own secret, so a leaked access secret cannot
// mint refresh tokens and vice versa.
//
// Verification never returns an error: a bad signature, foreign algorithm,
// malformed payload or past expiry all yield ok == false.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/config"
)

type claims struct {
	TenantID string `json:"uid"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. Safe for concurrent use.
type Manager struct {
	cfg config.AuthConfig
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now; used to verify tokens at a simulated time.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Manager for the given auth configuration.
func New(cfg config.AuthConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg: cfg,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTokenTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTokenTTL }

// IssueAccess signs an access token for the tenant.
func (m *Manager) IssueAccess(tenantID uuid.UUID) (string, time.Time, error) {
	return m.issue(tenantID, []byte(m.cfg.AccessSecret), m.cfg.AccessTokenTTL)
}

// IssueRefresh signs a refresh token for the tenant.
func (m *Manager) IssueRefresh(tenantID uuid.UUID) (string, time.Time, error) {
	return m.issue(tenantID, []byte(m.cfg.RefreshSecret), m.cfg.RefreshTokenTTL)
}

// VerifyAccess returns the tenant id of a valid access token.
func (m *Manager) VerifyAccess(tokenStr string) (uuid.UUID, bool) {
	c, ok := m.parse(tokenStr, []byte(m.cfg.AccessSecret))
	if !ok {
		return uuid.Nil, false
	}

	return tenantOf(c)
}

// VerifyRefresh returns the tenant id of a valid refresh token.
func (m *Manager) VerifyRefresh(tokenStr string) (uuid.UUID, bool) {
	c, ok := m.parse(tokenStr, []byte(m.cfg.RefreshSecret))
	if !ok {
		return uuid.Nil, false
	}

	return tenantOf(c)
}

// AccessRemaining reports how long a valid access token has left to live.
// Invalid or expired tokens report zero.
func (m *Manager) AccessRemaining(tokenStr string) time.Duration {
	c, ok := m.parse(tokenStr, []byte(m.cfg.AccessSecret))
	if !ok || c.ExpiresAt == nil {
		return 0
	}

	left := c.ExpiresAt.Sub(m.now())
	if left < 0 {
		return 0
	}

	return left
}

func (m *Manager) issue(tenantID uuid.UUID, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := m.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))

	c := claims{
		TenantID: tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps two tokens issued within the same second distinct.
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp.Time, nil
}

func (m *Manager) parse(tokenStr string, secret []byte) (*claims, bool) {
	if tokenStr == "" {
		return nil, false
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}

	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return nil, false
	}

	c, ok := tok.Claims.(*claims)
	if !ok {
		return nil, false
	}

	return c, true
}

func tenantOf(c *claims) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.TenantID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}
