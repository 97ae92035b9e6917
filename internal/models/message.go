package models

import "time"

// Message is a persisted room message. Messages are immutable once
// written; ParentID points at the immediate parent for threaded replies
// and is never resolved transitively.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	SenderID  int64     `db:"sender_id" json:"sender_id"`
	ParentID  *int64    `db:"parent_id" json:"parent_message_id,omitempty"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BroadcastMessage is a persisted message enriched with the sender's
// profile, as delivered to subscribers.
type BroadcastMessage struct {
	Message
	Sender UserProfile `json:"sender"`
}
