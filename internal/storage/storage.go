package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/storage.go -package=mocks

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/models"
)

var (
	// ErrNotFound: record not found (user or credential, including a credential
	// owned by another tenant).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists: uniqueness violation (email, id).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage persists tenant accounts.
type UserStorage interface {
	// SaveUser creates a new user. Duplicate email -> ErrAlreadyExists.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail finds a user by normalized email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID finds a user by id.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CredentialStorage persists encrypted connection strings. Records are append-only.
type CredentialStorage interface {
	// CreateCredential stores a new record.
	CreateCredential(ctx context.Context, cred *models.Credential) error
	// CredentialByID returns the record only if it belongs to tenantID;
	// otherwise ErrNotFound, so ownership cannot be skipped by a caller.
	CredentialByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Credential, error)
}

// Storage is the persistence contract of the service.
type Storage interface {
	UserStorage
	CredentialStorage
	Close(ctx context.Context) error
}
