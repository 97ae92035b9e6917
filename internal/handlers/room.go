package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"relay-service/internal/models"
	"relay-service/internal/repositories"
	"relay-service/internal/telemetry"
)

// RoomHandler manages the room and membership endpoints that feed the
// membership store the relay authorizes against.
type RoomHandler struct {
	roomRepo repositories.RoomRepository
	audit    *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{roomRepo: roomRepo, audit: audit}
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := currentUserID(c)

	var req struct {
		Name      string  `json:"name" binding:"required"`
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomRepo.CreateRoom(c.Request.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, gin.H{"room_id": room.ID})
}

// ListRooms returns rooms the caller belongs to.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := currentUserID(c)
	rooms, err := h.roomRepo.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// AddMember handles POST /rooms/:room_id/members. Owner only.
func (h *RoomHandler) AddMember(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := currentUserID(c)
	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}
	if room.OwnerID != userID {
		h.emitAudit(c, "ERROR", "not allowed to manage members")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may manage members"})
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomRepo.AddMember(c.Request.Context(), roomID, req.UserID, models.RoleMember); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add member"})
		return
	}

	h.emitAudit(c, "INFO", "Member added")
	c.Status(http.StatusNoContent)
}

// RemoveMember handles DELETE /rooms/:room_id/members/:user_id. Owner
// only. Revocation takes effect on the target's next relay event; their
// live subscription is not torn down here.
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := currentUserID(c)
	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}
	if room.OwnerID != userID {
		h.emitAudit(c, "ERROR", "not allowed to manage members")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may manage members"})
		return
	}
	if targetID == room.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner cannot be removed"})
		return
	}

	if err := h.roomRepo.RemoveMember(c.Request.Context(), roomID, targetID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMemberNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not remove member"})
		return
	}

	h.emitAudit(c, "INFO", "Member removed")
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseRoomID(c *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}
