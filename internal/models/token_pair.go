package models

import "time"

// TokenPair: tokens issued at login.
//
// Description:
//   - AccessToken: short-lived JWT for API access;
//   - RefreshToken: long-lived JWT exchanged for new access tokens; the
//     current value per tenant is kept in the session store;
//   - AccessExpiresAt / RefreshExpiresAt: expiry instants (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
