package models

import (
	"time"

	"github.com/google/uuid"
)

// User: tenant account. PasswordHash is a bcrypt hash and is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
