package models

import "time"

// Connection statuses reported to tenants.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// ConnectionInfo describes the tenant's live external connection, if any.
type ConnectionInfo struct {
	Status   string
	Name     string
	Host     string
	Database string
	OpenedAt time.Time
}
