package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-service/internal/auth"
	"relay-service/internal/mocks"
	"relay-service/internal/models"
	"relay-service/internal/relay"
)

type fakeVerifier struct {
	identity auth.Identity
	err      error
}

func (f fakeVerifier) Verify(_ context.Context, _ string) (auth.Identity, error) {
	return f.identity, f.err
}

func setupWSRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", handler.Handle)
	return r
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewHandler(NewHub(), nil, fakeVerifier{err: auth.ErrMissingToken}, users)
	router := setupWSRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// refused before any event can be processed
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewHandler(NewHub(), nil, fakeVerifier{err: auth.ErrInvalidToken}, users)
	router := setupWSRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/ws?token=expired", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRelaySendAndReceiveOverWebSocket(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)

	rooms.On("IsMember", mock.Anything, int64(5), int64(1)).Return(true, nil)
	messages.On("CreateMessage", mock.Anything, int64(5), int64(1), (*int64)(nil), "hello").
		Return(models.Message{ID: 10, RoomID: 5, SenderID: 1, Content: "hello", CreatedAt: time.Now()}, nil)
	users.On("UpsertUser", mock.Anything, int64(1), "alice").Return(nil)
	users.On("GetProfile", mock.Anything, int64(1)).
		Return(models.UserProfile{ID: 1, Username: "alice"}, nil)

	hub := NewHub()
	relaySvc := relay.New(rooms, messages, users, hub, nil)
	handler := NewHandler(hub, relaySvc, fakeVerifier{identity: auth.Identity{UserID: 1, Username: "alice"}}, users)

	srv := httptest.NewServer(setupWSRouter(handler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=ok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","room_id":5,"content":"hello"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.ServerEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	require.Equal(t, models.EventMessageReceived, event.Type)
	require.NotNil(t, event.Message)
	require.Equal(t, int64(10), event.Message.ID)
	require.Equal(t, "hello", event.Message.Content)
	require.Equal(t, "alice", event.Message.Sender.Username)
}

func TestRelayErrorSignaledOverWebSocket(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)

	rooms.On("IsMember", mock.Anything, int64(7), int64(2)).Return(false, nil)
	users.On("UpsertUser", mock.Anything, int64(2), "bob").Return(nil)

	hub := NewHub()
	relaySvc := relay.New(rooms, messages, users, hub, nil)
	handler := NewHandler(hub, relaySvc, fakeVerifier{identity: auth.Identity{UserID: 2, Username: "bob"}}, users)

	srv := httptest.NewServer(setupWSRouter(handler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=ok"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","room_id":7,"content":"hi"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.ServerEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	require.Equal(t, models.EventError, event.Type)
	require.Equal(t, relay.CodeNotAMember, event.Code)

	// connection stays usable: no message was persisted or broadcast
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
