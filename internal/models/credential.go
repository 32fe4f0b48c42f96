package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential: encrypted external connection string owned by one tenant.
//
// CipherText is meaningless without IV, AuthTag and the process-wide key.
// Records are append-only: there is no update or rotate operation.
type Credential struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	CipherText string
	IV         string
	AuthTag    string
	CreatedAt  time.Time
}
