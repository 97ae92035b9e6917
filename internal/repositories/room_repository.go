package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"relay-service/internal/models"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
)

// RoomRepository abstracts room and membership persistence. IsMember is
// the authorization gate consulted on every join and send.
type RoomRepository interface {
	CreateRoom(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]models.Room, error)
	GetRoom(ctx context.Context, roomID int64) (models.Room, error)
	IsMember(ctx context.Context, roomID int64, userID int64) (bool, error)
	AddMember(ctx context.Context, roomID int64, userID int64, role string) error
	RemoveMember(ctx context.Context, roomID int64, userID int64) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom creates a room and its initial members atomically. The owner
// is always enrolled with the owner role.
func (r *RoomRepo) CreateRoom(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx, `INSERT INTO rooms (name, owner_id) VALUES ($1, $2) RETURNING id, name, owner_id, created_at`, name, ownerID).
		Scan(&room.ID, &room.Name, &room.OwnerID, &room.CreatedAt); err != nil {
		return models.Room{}, err
	}

	// dedupe members, owner excluded from the plain-member set
	memberSet := map[int64]struct{}{}
	for _, id := range memberIDs {
		if id != ownerID {
			memberSet[id] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`, room.ID, ownerID, models.RoleOwner); err != nil {
		return models.Room{}, err
	}
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`, room.ID, id, models.RoleMember); err != nil {
			return models.Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// ListRoomsForUser returns rooms that include the user.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID int64) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms, `SELECT r.id, r.name, r.owner_id, r.created_at FROM rooms r INNER JOIN room_members rm ON rm.room_id = r.id WHERE rm.user_id=$1 ORDER BY r.created_at DESC`, userID)
	return rooms, err
}

// GetRoom fetches a single room.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int64) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, name, owner_id, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// IsMember checks current membership. The result is never cached; a
// revoked membership takes effect on the caller's next event.
func (r *RoomRepo) IsMember(ctx context.Context, roomID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// AddMember enrolls a user in a room, updating the role if already present.
func (r *RoomRepo) AddMember(ctx context.Context, roomID int64, userID int64, role string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)
        ON CONFLICT (room_id, user_id) DO UPDATE SET role = EXCLUDED.role`, roomID, userID, role)
	return err
}

// RemoveMember revokes a user's membership.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID int64, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}
