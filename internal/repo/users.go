package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abdusco/shorty/internal"
	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
)

type userRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    Date   `db:"created_at"`
}

// UsersRepo is the SQLite-backed UserRepo.
type UsersRepo struct {
	db  *goqu.Database
	now func() time.Time
}

func NewUsersRepo(db *sql.DB, now func() time.Time) *UsersRepo {
	if now == nil {
		now = time.Now
	}
	return &UsersRepo{db: goqu.New(dialect, db), now: now}
}

func (r *UsersRepo) Create(ctx context.Context, email, name, passwordHash string) (*internal.User, error) {
	query := r.db.Insert("users").Rows(goqu.Record{
		"email":         email,
		"name":          name,
		"password_hash": passwordHash,
		"created_at":    Date(r.now()),
	})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	log.Info().Int64("user_id", id).Msg("user created")

	return r.GetByID(ctx, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (*internal.User, error) {
	return r.getOne(ctx, goqu.Ex{"email": email})
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (*internal.User, error) {
	return r.getOne(ctx, goqu.Ex{"id": id})
}

func (r *UsersRepo) getOne(ctx context.Context, where goqu.Ex) (*internal.User, error) {
	query := r.db.From("users").
		Select("id", "email", "name", "password_hash", "created_at").
		Where(where)

	var row userRow
	found, err := query.ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if !found {
		return nil, internal.ErrUserNotFound
	}

	return &internal.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.Time(),
	}, nil
}
