package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"relay-service/internal/models"
)

type stubSubscriber struct {
	id int64

	mu     sync.Mutex
	events []models.ServerEvent
}

func (s *stubSubscriber) UserID() int64     { return s.id }
func (s *stubSubscriber) RequestID() string { return "" }

func (s *stubSubscriber) Send(event models.ServerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return true
}

func (s *stubSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestHubSubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := &stubSubscriber{id: 1}

	hub.Subscribe(5, sub)
	hub.Subscribe(5, sub)

	require.Len(t, hub.MembersOf(5), 1)

	// a single broadcast must not be delivered twice to the same connection
	hub.Broadcast(5, models.ServerEvent{Type: models.EventMessageReceived})
	require.Equal(t, 1, sub.count())
}

func TestHubUnsubscribeRemovesFromAllRooms(t *testing.T) {
	hub := NewHub()
	sub := &stubSubscriber{id: 1}

	hub.Subscribe(1, sub)
	hub.Subscribe(2, sub)
	hub.Unsubscribe(sub)

	require.Empty(t, hub.MembersOf(1))
	require.Empty(t, hub.MembersOf(2))
}

func TestHubBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub()
	inRoom := &stubSubscriber{id: 1}
	elsewhere := &stubSubscriber{id: 2}

	hub.Subscribe(1, inRoom)
	hub.Subscribe(2, elsewhere)

	hub.Broadcast(1, models.ServerEvent{Type: models.EventMessageReceived})

	require.Equal(t, 1, inRoom.count())
	require.Equal(t, 0, elsewhere.count())
}

func TestHubEmptyRoomIsDroppedAfterLastUnsubscribe(t *testing.T) {
	hub := NewHub()
	sub := &stubSubscriber{id: 1}

	hub.Subscribe(5, sub)
	hub.Unsubscribe(sub)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	require.NotContains(t, hub.rooms, int64(5))
	require.NotContains(t, hub.subRooms, sub)
}

func TestHubConcurrentSubscribeAndBroadcast(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		sub := &stubSubscriber{id: int64(i)}
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Subscribe(1, sub)
			hub.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(1, models.ServerEvent{Type: models.EventMessageReceived})
		}()
	}
	wg.Wait()

	require.Empty(t, hub.MembersOf(1))
}
