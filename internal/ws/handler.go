package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"relay-service/internal/auth"
	"relay-service/internal/observability"
	"relay-service/internal/relay"
	"relay-service/internal/repositories"
)

const eventsRoutingKey = "ws_events.relay"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the relay websocket endpoint: it authenticates the
// handshake, upgrades the connection and feeds inbound frames to the
// relay dispatch table.
type Handler struct {
	hub      *Hub
	relay    *relay.Relay
	verifier auth.TokenVerifier
	users    repositories.UserRepository
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, r *relay.Relay, verifier auth.TokenVerifier, users repositories.UserRepository) *Handler {
	return &Handler{hub: hub, relay: r, verifier: verifier, users: users}
}

// Handle upgrades and registers a relay connection. A missing or invalid
// credential refuses the connection here; no error event is emitted
// because the channel does not exist yet.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("relay-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	identity, err := h.verifier.Verify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// Mirror the identity's display row so enrichment resolves. Not
	// fatal: the relay falls back to the bare identity.
	if err := h.users.UpsertUser(ctx, identity.UserID, identity.Username); err != nil {
		log.Printf("user upsert failed for %d: %v", identity.UserID, err)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Username:    identity.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)
	go client.WritePump()

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishLifecycleEvent(ctx, info, "ws_connect", "")

	go h.readLoop(context.WithoutCancel(ctx), client)
}

// readLoop processes inbound frames sequentially, preserving the arrival
// order of one connection's own events. On exit the client is dropped
// from every room; an in-flight persist is not cancelled.
func (h *Handler) readLoop(ctx context.Context, client *Client) {
	var closeReason string
	defer func() {
		h.hub.Unsubscribe(client)
		client.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishLifecycleEvent(ctx, client.Info(), "ws_disconnect", closeReason)
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				publishLifecycleEvent(ctx, client.Info(), "ws_error", closeReason)
			}
			return
		}
		h.relay.Dispatch(ctx, client, raw)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func publishLifecycleEvent(ctx context.Context, info ConnInfo, event, reason string) {
	_ = observability.PublishEvent(ctx, eventsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":    info.UserID,
				"device_id":  info.DeviceID,
				"ip":         info.IP,
				"request_id": info.RequestID,
				"trace_id":   info.TraceID,
			},
		},
	})
}
