package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JosephRemingston/insightAI/internal/models"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

// CreateCredential inserts an encrypted connection record.
func (s *Storage) CreateCredential(ctx context.Context, cred *models.Credential) error {
	const op = "storage.postgres.CreateCredential"

	query := `
		INSERT INTO credentials(id, tenant_id, name, cipher_text, iv, auth_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		cred.ID,
		cred.TenantID,
		cred.Name,
		cred.CipherText,
		cred.IV,
		cred.AuthTag,
		cred.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CredentialByID returns the record only when tenant_id matches.
func (s *Storage) CredentialByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Credential, error) {
	const op = "storage.postgres.CredentialByID"

	query := `
		SELECT id, tenant_id, name, cipher_text, iv, auth_tag, created_at
		FROM credentials
		WHERE id = $1 AND tenant_id = $2
	`

	var c models.Credential
	err := s.db.QueryRow(ctx, query, id, tenantID).Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.CipherText,
		&c.IV,
		&c.AuthTag,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.CreatedAt = c.CreatedAt.UTC()

	return &c, nil
}
