package ws

import (
	"sync"

	"relay-service/internal/models"
	"relay-service/internal/observability"
	"relay-service/internal/relay"
)

// Hub is the in-process room subscription registry and fan-out target
// list. It holds no authorization state: subscription implies nothing
// beyond the instant it was granted, and membership is re-verified by the
// relay before any send is accepted.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[int64]map[relay.Subscriber]struct{}
	subRooms map[relay.Subscriber]map[int64]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int64]map[relay.Subscriber]struct{}),
		subRooms: make(map[relay.Subscriber]map[int64]struct{}),
	}
}

// Subscribe registers a subscriber for a room. Subscribing an
// already-subscribed connection is a no-op.
func (h *Hub) Subscribe(roomID int64, sub relay.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[relay.Subscriber]struct{})
	}
	h.rooms[roomID][sub] = struct{}{}
	if _, ok := h.subRooms[sub]; !ok {
		h.subRooms[sub] = make(map[int64]struct{})
	}
	h.subRooms[sub][roomID] = struct{}{}
}

// Unsubscribe removes the subscriber from every room it was subscribed
// to. Invoked on disconnect.
func (h *Hub) Unsubscribe(sub relay.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.subRooms[sub] {
		if conns, ok := h.rooms[roomID]; ok {
			delete(conns, sub)
			if len(conns) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.subRooms, sub)
}

// MembersOf returns a snapshot of the room's current subscribers.
func (h *Hub) MembersOf(roomID int64) []relay.Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]relay.Subscriber, 0, len(h.rooms[roomID]))
	for sub := range h.rooms[roomID] {
		subs = append(subs, sub)
	}
	return subs
}

// Broadcast delivers the event to every subscriber of the room at the
// moment of the call. Per-subscriber delivery is fire-and-forget: a
// refused enqueue is counted and dropped, never retried.
func (h *Hub) Broadcast(roomID int64, event models.ServerEvent) {
	for _, sub := range h.MembersOf(roomID) {
		if sub.Send(event) {
			observability.IncBroadcastDelivered()
		} else {
			observability.IncBroadcastDropped()
		}
	}
}
