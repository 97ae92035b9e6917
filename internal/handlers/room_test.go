package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-service/internal/mocks"
	"relay-service/internal/models"
)

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/rooms", handler.CreateRoom)
	r.GET("/rooms", handler.ListRooms)
	r.POST("/rooms/:room_id/members", handler.AddMember)
	r.DELETE("/rooms/:room_id/members/:user_id", handler.RemoveMember)
	return r
}

func TestCreateRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("CreateRoom", mock.Anything, int64(1), "general", []int64{2}).
		Return(models.Room{ID: 5, Name: "general", OwnerID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":"general","member_ids":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomInvalidBody(t *testing.T) {
	handler := NewRoomHandler(new(mocks.RoomRepositoryMock), nil)
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRoomsSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("ListRoomsForUser", mock.Anything, int64(1)).
		Return([]models.Room{{ID: 5, Name: "general", OwnerID: 1}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestAddMemberOwnerOnly(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("GetRoom", mock.Anything, int64(5)).
		Return(models.Room{ID: 5, Name: "general", OwnerID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/members", bytes.NewBufferString(`{"user_id":3}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	roomRepo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMemberSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("GetRoom", mock.Anything, int64(5)).
		Return(models.Room{ID: 5, Name: "general", OwnerID: 1}, nil).Once()
	roomRepo.On("AddMember", mock.Anything, int64(5), int64(3), models.RoleMember).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/members", bytes.NewBufferString(`{"user_id":3}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestRemoveMemberSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("GetRoom", mock.Anything, int64(5)).
		Return(models.Room{ID: 5, Name: "general", OwnerID: 1}, nil).Once()
	roomRepo.On("RemoveMember", mock.Anything, int64(5), int64(3)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/rooms/5/members/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestRemoveMemberCannotRemoveOwner(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("GetRoom", mock.Anything, int64(5)).
		Return(models.Room{ID: 5, Name: "general", OwnerID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/rooms/5/members/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	roomRepo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}
