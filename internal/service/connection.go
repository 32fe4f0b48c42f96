package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/models"
	logctx "github.com/JosephRemingston/insightAI/internal/pkg/log"
	"github.com/JosephRemingston/insightAI/internal/pkg/redact"
	"github.com/JosephRemingston/insightAI/internal/pkg/secret"
	"github.com/JosephRemingston/insightAI/internal/registry"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

// SaveConnection encrypts uri and stores it as a new credential record for
// the tenant. The string itself is not validated; a bad one surfaces at
// connect time. Rejected while the tenant holds a live connection.
func (s *Service) SaveConnection(ctx context.Context, tenantID uuid.UUID, uri, name string) (*models.Credential, error) {
	const op = "service.connection.SaveConnection"

	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%s: %w: connection string is required", op, ErrInvalidArgument)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w: name is required", op, ErrInvalidArgument)
	}

	if s.conns.IsOpen(tenantID) {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyConnected)
	}

	sealed, err := s.cipher.Encrypt(uri)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cred := &models.Credential{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       name,
		CipherText: sealed.CipherText,
		IV:         sealed.IV,
		AuthTag:    sealed.AuthTag,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.storage.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("connection_saved",
		slog.String("tenant_id", tenantID.String()),
		slog.String("connection_id", cred.ID.String()),
		slog.String("uri", redact.URI(uri)),
	)

	return cred, nil
}

// Connect decrypts the tenant's credential and opens it in the registry.
func (s *Service) Connect(ctx context.Context, tenantID, connectionID uuid.UUID) (*models.ConnectionInfo, error) {
	const op = "service.connection.Connect"

	log := logctx.From(ctx).With(
		slog.String("op", op),
		slog.String("tenant_id", tenantID.String()),
		slog.String("connection_id", connectionID.String()),
	)

	cred, err := s.storage.CredentialByID(ctx, tenantID, connectionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrConnectionNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uri, err := s.cipher.Decrypt(secret.Sealed{
		CipherText: cred.CipherText,
		IV:         cred.IV,
		AuthTag:    cred.AuthTag,
	})
	if err != nil {
		log.Error("credential_integrity_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, ErrIntegrity)
	}

	h, err := s.conns.Open(ctx, tenantID, uri, cred.Name)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrAlreadyOpen):
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyConnected)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}

		log.Warn("connect_failed",
			slog.String("uri", redact.URI(uri)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrUpstream)
	}

	log.Info("connected", slog.String("host", h.Host), slog.String("database", h.Database))

	return &models.ConnectionInfo{
		Status:   models.StatusConnected,
		Name:     h.Name,
		Host:     h.Host,
		Database: h.Database,
		OpenedAt: h.OpenedAt,
	}, nil
}

// Disconnect closes the tenant's live connection. A failing disconnect of
// the external client is logged; the tenant is disconnected either way.
func (s *Service) Disconnect(ctx context.Context, tenantID uuid.UUID) error {
	const op = "service.connection.Disconnect"

	if err := s.conns.Close(ctx, tenantID); err != nil {
		if errors.Is(err, registry.ErrNotOpen) {
			return fmt.Errorf("%s: %w", op, ErrNotConnected)
		}

		logctx.From(ctx).Warn("disconnect_close_failed",
			slog.String("op", op),
			slog.String("tenant_id", tenantID.String()),
			slog.String("err", err.Error()),
		)
	}

	logctx.From(ctx).Info("disconnected", slog.String("tenant_id", tenantID.String()))

	return nil
}

// ConnectionStatus reports the tenant's live connection, if any.
func (s *Service) ConnectionStatus(_ context.Context, tenantID uuid.UUID) *models.ConnectionInfo {
	st := s.conns.Status(tenantID)
	if !st.Open {
		return &models.ConnectionInfo{Status: models.StatusDisconnected}
	}

	return &models.ConnectionInfo{
		Status:   models.StatusConnected,
		Name:     st.Name,
		Host:     st.Host,
		Database: st.Database,
		OpenedAt: st.OpenedAt,
	}
}
