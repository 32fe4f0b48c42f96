package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/models"
	"github.com/JosephRemingston/insightAI/internal/service"
)

// maxBodyBytes caps request bodies; connection strings are short.
const maxBodyBytes = 64 << 10

// Vault is the business API used by the handlers.
type Vault interface {
	Signup(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, time.Time, error)
	Logout(ctx context.Context, tenantID uuid.UUID, accessToken string) error

	SaveConnection(ctx context.Context, tenantID uuid.UUID, uri, name string) (*models.Credential, error)
	Connect(ctx context.Context, tenantID, connectionID uuid.UUID) (*models.ConnectionInfo, error)
	Disconnect(ctx context.Context, tenantID uuid.UUID) error
	ConnectionStatus(ctx context.Context, tenantID uuid.UUID) *models.ConnectionInfo
}

// Handlers aggregates handler dependencies.
type Handlers struct {
	vault     Vault
	startedAt time.Time
	now       func() time.Time
}

func New(v Vault, startedAt time.Time) *Handlers {
	return &Handlers{vault: v, startedAt: startedAt, now: time.Now}
}

// writeJSON writes value as JSON with the given status.
// Errors go through apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict decodes a single JSON object, rejecting unknown fields and
// trailing data. Any failure is service.ErrInvalidArgument.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return service.ErrInvalidArgument
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return service.ErrInvalidArgument
	}

	return nil
}
