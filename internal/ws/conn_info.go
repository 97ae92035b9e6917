package ws

import "time"

// ConnInfo captures per-connection metadata resolved at handshake time.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
