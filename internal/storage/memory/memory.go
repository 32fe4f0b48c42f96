// memory is an in-process storage.Storage used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/models"
	"github.com/JosephRemingston/insightAI/internal/storage"
)

type Storage struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]models.User
	byEmail     map[string]uuid.UUID
	credentials map[uuid.UUID]models.Credential
}

func New() *Storage {
	return &Storage{
		users:       make(map[uuid.UUID]models.User),
		byEmail:     make(map[string]uuid.UUID),
		credentials: make(map[uuid.UUID]models.Credential),
	}
}

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.users[user.ID] = *user
	s.byEmail[key] = user.ID

	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u := s.users[id]
	return &u, nil
}

func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &u, nil
}

func (s *Storage) CreateCredential(ctx context.Context, cred *models.Credential) error {
	const op = "storage.memory.CreateCredential"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[cred.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	s.credentials[cred.ID] = *cred

	return nil
}

func (s *Storage) CredentialByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Credential, error) {
	const op = "storage.memory.CredentialByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[id]
	if !ok || c.TenantID != tenantID {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &c, nil
}

func (s *Storage) Close(context.Context) error { return nil }

var _ storage.Storage = (*Storage)(nil)
