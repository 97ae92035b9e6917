package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"relay-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads the identity-linked display data used to enrich
// outbound messages. UpsertUser mirrors the authenticated identity into
// the store on connection so enrichment always resolves.
type UserRepository interface {
	GetProfile(ctx context.Context, userID int64) (models.UserProfile, error)
	BulkProfiles(ctx context.Context, ids []int64) ([]models.UserProfile, error)
	UpsertUser(ctx context.Context, userID int64, username string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetProfile fetches one user's display data.
func (r *UserRepo) GetProfile(ctx context.Context, userID int64) (models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, `SELECT id, username, display_name, avatar_url FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrUserNotFound
	}
	return profile, err
}

// BulkProfiles fetches display data for many users in one query.
func (r *UserRepo) BulkProfiles(ctx context.Context, ids []int64) ([]models.UserProfile, error) {
	if len(ids) == 0 {
		return []models.UserProfile{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, username, display_name, avatar_url FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var profiles []models.UserProfile
	err = r.db.SelectContext(ctx, &profiles, query, args...)
	return profiles, err
}

// UpsertUser records the authenticated identity's current username.
func (r *UserRepo) UpsertUser(ctx context.Context, userID int64, username string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`, userID, username)
	return err
}
