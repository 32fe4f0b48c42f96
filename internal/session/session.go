// session defines the key-value store backing refresh-token persistence and
// the access-token blacklist. Every entry carries its own time-to-live and
// silently disappears once it elapses.
//
// Logical namespaces are distinguished only by key prefix:
//   - refresh:{tenantId}: current refresh token of the tenant;
//   - blacklist:{token}: revoked access token, lives as long as the token would;
//   - user:{tenantId}:token: last access token issued to the tenant.
package session

//go:generate mockgen -source=session.go -destination=../../mocks/session.go -package=mocks

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound: key is absent or already expired.
	ErrNotFound = errors.New("session key not found")

	// ErrInvalidTTL: non-positive time-to-live; entries without expiry are not allowed.
	ErrInvalidTTL = errors.New("session ttl must be positive")
)

// Store is a key-value store with per-key expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores value under key for ttl, replacing any previous value.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}

// RefreshKey: key of the tenant's current refresh token.
func RefreshKey(tenantID string) string { return "refresh:" + tenantID }

// BlacklistKey: key marking an access token as revoked.
func BlacklistKey(token string) string { return "blacklist:" + token }

// LastTokenKey: key of the last access token issued to the tenant.
func LastTokenKey(tenantID string) string { return "user:" + tenantID + ":token" }
