package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JosephRemingston/insightAI/internal/metrics"
	"github.com/JosephRemingston/insightAI/internal/models"
	logctx "github.com/JosephRemingston/insightAI/internal/pkg/log"
	"github.com/JosephRemingston/insightAI/internal/pkg/redact"
	"github.com/JosephRemingston/insightAI/internal/session"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

// Signup registers a tenant. No tokens are issued; the client logs in next.
func (s *Service) Signup(ctx context.Context, email, password string) (*models.User, error) {
	const op = "service.auth.Signup"

	normEmail, err := validateEmail(email)
	if err != nil {
		s.metrics.AuthEvent("signup", metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if password == "" {
		s.metrics.AuthEvent("signup", metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		s.metrics.AuthEvent("signup", metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.metrics.AuthEvent("signup", metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			s.metrics.AuthEvent("signup", metrics.ResultRejected)
			return nil, fmt.Errorf("%s: %w: password longer than 72 bytes", op, ErrInvalidArgument)
		}

		s.metrics.AuthEvent("signup", metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			s.metrics.AuthEvent("signup", metrics.ResultRejected)
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		s.metrics.AuthEvent("signup", metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthEvent("signup", metrics.ResultOK)
	logctx.From(ctx).Info("user_signed_up",
		slog.String("tenant_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return user, nil
}

// Login checks the password and issues an access/refresh pair. The refresh
// token replaces whatever was stored for the tenant, so concurrent logins
// resolve to the last writer.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *models.TokenPair, error) {
	const op = "service.auth.Login"

	normEmail, err := validateEmail(email)
	if err != nil || password == "" {
		s.metrics.AuthEvent("login", metrics.ResultRejected)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.AuthEvent("login", metrics.ResultRejected)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		s.metrics.AuthEvent("login", metrics.ResultError)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		s.metrics.AuthEvent("login", metrics.ResultRejected)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		s.metrics.AuthEvent("login", metrics.ResultError)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthEvent("login", metrics.ResultOK)
	logctx.From(ctx).Info("user_logged_in", slog.String("tenant_id", user.ID.String()))

	return user, pair, nil
}

// Refresh exchanges the tenant's current refresh token for a new access
// token. A validly signed refresh token that is no longer the stored one
// (superseded by a later login) is rejected as revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	const op = "service.auth.Refresh"

	tenantID, ok := s.tokens.VerifyRefresh(refreshToken)
	if !ok {
		s.metrics.AuthEvent("refresh", metrics.ResultRejected)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	stored, err := s.sessions.Get(ctx, session.RefreshKey(tenantID.String()))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.metrics.AuthEvent("refresh", metrics.ResultRejected)
			return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		s.metrics.AuthEvent("refresh", metrics.ResultError)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		s.metrics.AuthEvent("refresh", metrics.ResultRejected)
		logctx.From(ctx).Warn("refresh_token_replayed", slog.String("tenant_id", tenantID.String()))
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	access, exp, err := s.tokens.IssueAccess(tenantID)
	if err != nil {
		s.metrics.AuthEvent("refresh", metrics.ResultError)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.Put(ctx, session.LastTokenKey(tenantID.String()), access, s.tokens.AccessTTL()); err != nil {
		s.metrics.AuthEvent("refresh", metrics.ResultError)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AuthEvent("refresh", metrics.ResultOK)

	return access, exp, nil
}

// Logout revokes the presented access token and forgets the tenant's
// refresh token and last-token marker.
func (s *Service) Logout(ctx context.Context, tenantID uuid.UUID, accessToken string) error {
	const op = "service.auth.Logout"

	if err := s.RevokeAccess(ctx, accessToken); err != nil {
		s.metrics.AuthEvent("logout", metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, key := range []string{
		session.RefreshKey(tenantID.String()),
		session.LastTokenKey(tenantID.String()),
	} {
		if err := s.sessions.Delete(ctx, key); err != nil {
			s.metrics.AuthEvent("logout", metrics.ResultError)
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	s.metrics.AuthEvent("logout", metrics.ResultOK)
	logctx.From(ctx).Info("user_logged_out", slog.String("tenant_id", tenantID.String()))

	return nil
}

// RevokeAccess blacklists an access token for the rest of its natural life.
// Tokens that are already expired or unparsable need no entry.
func (s *Service) RevokeAccess(ctx context.Context, accessToken string) error {
	const op = "service.auth.RevokeAccess"

	ttl := s.tokens.AccessRemaining(accessToken)
	if ttl <= 0 {
		return nil
	}

	if err := s.sessions.Put(ctx, session.BlacklistKey(accessToken), "1", ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Authenticate resolves a bearer access token to its tenant. The blacklist
// is consulted before the signature, so a revoked token is rejected even
// while it would still verify.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.Authenticate"

	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	_, err := s.sessions.Get(ctx, session.BlacklistKey(accessToken))
	switch {
	case err == nil:
		s.metrics.AuthEvent("authenticate", metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	case !errors.Is(err, session.ErrNotFound):
		s.metrics.AuthEvent("authenticate", metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tenantID, ok := s.tokens.VerifyAccess(accessToken)
	if !ok {
		s.metrics.AuthEvent("authenticate", metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.storage.UserByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.AuthEvent("authenticate", metrics.ResultRejected)
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		s.metrics.AuthEvent("authenticate", metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Service) issueTokenPair(ctx context.Context, tenantID uuid.UUID) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	access, accessExp, err := s.tokens.IssueAccess(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, refreshExp, err := s.tokens.IssueRefresh(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// The refresh token must be stored before it is handed out.
	if err := s.sessions.Put(ctx, session.RefreshKey(tenantID.String()), refresh, s.tokens.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("%s: store refresh: %w", op, err)
	}

	if err := s.sessions.Put(ctx, session.LastTokenKey(tenantID.String()), access, s.tokens.AccessTTL()); err != nil {
		return nil, fmt.Errorf("%s: store last token: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail trims, parses and lowercases an address. Display-name forms
// ("Bob <bob@x.io>") are rejected.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}
