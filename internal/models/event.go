package models

// Inbound event types accepted over a relay connection.
const (
	EventJoin    = "join"
	EventMessage = "message"
)

// Outbound event types.
const (
	EventMessageReceived = "message"
	EventError           = "error"
)

// EventEnvelope carries the discriminating type of an inbound frame.
// The payload is re-decoded by the handler registered for the type.
type EventEnvelope struct {
	Type string `json:"type"`
}

// JoinPayload subscribes the connection to a room's broadcasts.
type JoinPayload struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id" validate:"required,gt=0"`
}

// SendPayload posts a message to a room. When ParentMessageID is set the
// target room is derived from the parent message and RoomID is ignored.
type SendPayload struct {
	Type            string `json:"type"`
	RoomID          int64  `json:"room_id"`
	ParentMessageID int64  `json:"parent_message_id"`
	Content         string `json:"content" validate:"required"`
}

// ServerEvent is a single outbound frame.
type ServerEvent struct {
	Type    string            `json:"type"`
	Message *BroadcastMessage `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}
