package models

import "time"

// Membership roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Room is a group-scoped channel. Messages and live subscriptions are
// partitioned by room.
type Room struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Membership records that a user belongs to a room. It is the
// authoritative fact consulted on every join and send.
type Membership struct {
	RoomID   int64     `db:"room_id" json:"room_id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// UserProfile is the identity-linked display data attached to outbound
// messages.
type UserProfile struct {
	ID          int64   `db:"id" json:"id"`
	Username    string  `db:"username" json:"username"`
	DisplayName *string `db:"display_name" json:"display_name,omitempty"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url,omitempty"`
}
