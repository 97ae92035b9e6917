package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"relay-service/internal/models"
	"relay-service/internal/repositories"
	"relay-service/internal/telemetry"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// HistoryHandler serves the paginated message history clients use to
// backfill on connect or reconnect. The live relay never replays history.
type HistoryHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	audit       *telemetry.AuditEmitter
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter) *HistoryHandler {
	return &HistoryHandler{roomRepo: roomRepo, messageRepo: messageRepo, userRepo: userRepo, audit: audit}
}

// GetRoomMessages handles GET /rooms/:room_id/messages. Gated by the same
// membership check as the live relay.
func (h *HistoryHandler) GetRoomMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := currentUserID(c)
	member, err := h.roomRepo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	cursor, limit, ok := parsePageParams(c)
	if !ok {
		return
	}

	msgs, err := h.messageRepo.ListRoomMessages(c.Request.Context(), roomID, cursor, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := lo.Uniq(lo.Map(msgs, func(m models.Message, _ int) int64 { return m.SenderID }))
	profileByID := map[int64]models.UserProfile{}
	if len(senderIDs) > 0 {
		profiles, err := h.userRepo.BulkProfiles(c.Request.Context(), senderIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
			return
		}
		profileByID = lo.KeyBy(profiles, func(p models.UserProfile) int64 { return p.ID })
	}

	resp := lo.Map(msgs, func(m models.Message, _ int) models.BroadcastMessage {
		sender, ok := profileByID[m.SenderID]
		if !ok {
			sender = models.UserProfile{ID: m.SenderID}
		}
		return models.BroadcastMessage{Message: m, Sender: sender}
	})

	var nextCursor int64
	if len(msgs) == limit {
		nextCursor = msgs[len(msgs)-1].ID
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp, "next_cursor": nextCursor})
}

func (h *HistoryHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parsePageParams(c *gin.Context) (int64, int, bool) {
	var cursor int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return 0, 0, false
		}
		cursor = parsed
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return 0, 0, false
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return cursor, limit, true
}
