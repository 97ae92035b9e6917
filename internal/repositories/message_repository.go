package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"relay-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with the durable message store.
// Messages are insert-only; there is no update or delete path.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int64, senderID int64, parentID *int64, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int64, cursor int64, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message. The id and timestamp are assigned by
// the database, never by the client.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int64, senderID int64, parentID *int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_id, sender_id, parent_id, content) VALUES ($1, $2, $3, $4) RETURNING id, room_id, sender_id, parent_id, content, created_at`, roomID, senderID, parentID, content).
		Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.ParentID, &msg.Content, &msg.CreatedAt)
	return msg, err
}

// GetMessage fetches a single message, used to resolve reply parents.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, room_id, sender_id, parent_id, content, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListRoomMessages returns a descending page of messages. A zero cursor
// starts from the newest message; otherwise only messages older than the
// cursor id are returned.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int64, cursor int64, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_id, sender_id, parent_id, content, created_at FROM messages WHERE room_id=$1 AND ($2 = 0 OR id < $2) ORDER BY id DESC LIMIT $3`, roomID, cursor, limit)
	return msgs, err
}
