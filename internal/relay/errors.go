package relay

// Error codes signaled back to the originating connection. Clients treat
// each as a distinct, user-presentable condition.
const (
	CodeInvalidPayload = "invalid_payload"
	CodeInvalidContent = "invalid_content"
	CodeInvalidRoom    = "invalid_room"
	CodeNotAMember     = "not_a_member"
	CodeParentNotFound = "parent_not_found"
	CodeInternal       = "internal_error"
)

// EventError is a recoverable, per-event failure. It is reported to the
// triggering connection without closing it; only handshake authentication
// failure is connection-fatal, and that never reaches this type.
type EventError struct {
	Code   string
	Detail string
}

func (e *EventError) Error() string {
	return e.Code + ": " + e.Detail
}

func invalidPayload(detail string) *EventError {
	return &EventError{Code: CodeInvalidPayload, Detail: detail}
}

func invalidContent() *EventError {
	return &EventError{Code: CodeInvalidContent, Detail: "content must be a non-empty string"}
}

func invalidRoom() *EventError {
	return &EventError{Code: CodeInvalidRoom, Detail: "room id is missing or malformed"}
}

func notAMember() *EventError {
	return &EventError{Code: CodeNotAMember, Detail: "not a member of this room"}
}

func parentNotFound() *EventError {
	return &EventError{Code: CodeParentNotFound, Detail: "parent message not found"}
}

func internalError() *EventError {
	return &EventError{Code: CodeInternal, Detail: "internal error"}
}
