package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"

	"relay-service/internal/models"
	"relay-service/internal/observability"
	"relay-service/internal/repositories"
	"relay-service/internal/telemetry"
)

// Subscriber is one live connection as seen by the relay. Send enqueues
// an outbound event and reports whether it was accepted; a false return
// means the frame was dropped, never that the caller should retry.
type Subscriber interface {
	UserID() int64
	RequestID() string
	Send(event models.ServerEvent) bool
}

// Registry tracks which subscribers listen to which rooms and fans
// persisted messages out to them. Implementations must tolerate
// concurrent subscribe/unsubscribe/broadcast for the same room.
type Registry interface {
	// Subscribe is idempotent; subscribing an already-subscribed
	// connection is a no-op.
	Subscribe(roomID int64, sub Subscriber)
	// Unsubscribe removes the subscriber from every room.
	Unsubscribe(sub Subscriber)
	// Broadcast delivers the event to every subscriber of the room at
	// the moment of the call, the sender included.
	Broadcast(roomID int64, event models.ServerEvent)
}

type handlerFunc func(ctx context.Context, sub Subscriber, raw []byte) *EventError

// Relay validates, persists and fans out room events. Membership is
// re-checked against the store on every join and send, never cached, so
// a revocation takes effect on the very next event.
type Relay struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	registry Registry
	audit    *telemetry.AuditEmitter
	validate *validator.Validate
	handlers map[string]handlerFunc
}

// New constructs a Relay and its event dispatch table.
func New(rooms repositories.RoomRepository, messages repositories.MessageRepository, users repositories.UserRepository, registry Registry, audit *telemetry.AuditEmitter) *Relay {
	r := &Relay{
		rooms:    rooms,
		messages: messages,
		users:    users,
		registry: registry,
		audit:    audit,
		validate: validator.New(),
	}
	r.handlers = map[string]handlerFunc{
		models.EventJoin:    r.handleJoin,
		models.EventMessage: r.handleSend,
	}
	return r
}

// Dispatch routes one inbound frame to the handler registered for its
// event type. Handler failures are signaled back to the originating
// connection; the connection itself stays usable.
func (r *Relay) Dispatch(ctx context.Context, sub Subscriber, raw []byte) {
	var envelope models.EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		r.signalError(ctx, sub, invalidPayload("malformed event"))
		return
	}

	handler, ok := r.handlers[envelope.Type]
	if !ok {
		r.signalError(ctx, sub, invalidPayload("unknown event type"))
		return
	}

	if evtErr := handler(ctx, sub, raw); evtErr != nil {
		r.signalError(ctx, sub, evtErr)
	}
}

// handleJoin subscribes the connection to a room after re-checking
// membership.
func (r *Relay) handleJoin(ctx context.Context, sub Subscriber, raw []byte) *EventError {
	var payload models.JoinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return invalidPayload("malformed join payload")
	}
	if err := r.validate.Struct(payload); err != nil {
		return invalidPayload("room_id is required")
	}

	member, err := r.rooms.IsMember(ctx, payload.RoomID, sub.UserID())
	if err != nil {
		log.Printf("membership check failed: %v", err)
		return internalError()
	}
	if !member {
		return notAMember()
	}

	r.registry.Subscribe(payload.RoomID, sub)
	observability.IncWSEvent("join")
	return nil
}

// handleSend validates, persists and broadcasts one message. The sender
// is enrolled as a subscriber of the effective room before the fan-out
// snapshot is taken, so it always receives its own message.
func (r *Relay) handleSend(ctx context.Context, sub Subscriber, raw []byte) *EventError {
	ctx, span := otel.Tracer("relay-service/relay").Start(ctx, "relay.send")
	defer span.End()

	var payload models.SendPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return invalidPayload("malformed message payload")
	}
	if err := r.validate.Struct(payload); err != nil {
		return invalidContent()
	}
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return invalidContent()
	}

	// A reply inherits its room from the parent message; any
	// client-supplied room id is ignored.
	roomID := payload.RoomID
	var parentID *int64
	if payload.ParentMessageID > 0 {
		parent, err := r.messages.GetMessage(ctx, payload.ParentMessageID)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return parentNotFound()
		}
		if err != nil {
			log.Printf("parent lookup failed: %v", err)
			return internalError()
		}
		roomID = parent.RoomID
		id := payload.ParentMessageID
		parentID = &id
	} else if roomID <= 0 {
		return invalidRoom()
	}

	member, err := r.rooms.IsMember(ctx, roomID, sub.UserID())
	if err != nil {
		log.Printf("membership check failed: %v", err)
		return internalError()
	}
	if !member {
		return notAMember()
	}

	r.registry.Subscribe(roomID, sub)

	msg, err := r.messages.CreateMessage(ctx, roomID, sub.UserID(), parentID, content)
	if err != nil {
		log.Printf("message persist failed: %v", err)
		return internalError()
	}

	profile, err := r.users.GetProfile(ctx, sub.UserID())
	if err != nil {
		// The message is already durable and must still be broadcast;
		// fall back to the bare identity.
		log.Printf("profile lookup failed for user %d: %v", sub.UserID(), err)
		profile = models.UserProfile{ID: sub.UserID()}
	}

	r.registry.Broadcast(roomID, models.ServerEvent{
		Type:    models.EventMessageReceived,
		Message: &models.BroadcastMessage{Message: msg, Sender: profile},
	})

	observability.IncWSEvent("message_sent")
	r.emitAudit(ctx, sub, "INFO", "message sent")
	return nil
}

func (r *Relay) signalError(ctx context.Context, sub Subscriber, evtErr *EventError) {
	sub.Send(models.ServerEvent{
		Type:   models.EventError,
		Code:   evtErr.Code,
		Detail: evtErr.Detail,
	})
	observability.IncWSEvent("error")
	r.emitAudit(ctx, sub, "WARN", "event rejected: "+evtErr.Code)
}

func (r *Relay) emitAudit(ctx context.Context, sub Subscriber, level, text string) {
	if r.audit == nil {
		return
	}
	userID := sub.UserID()
	r.audit.Emit(ctx, level, text, sub.RequestID(), &userID)
}
