package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"emitra-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, mobile)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	user.ID = uuid.New()

	return r.pool.QueryRow(ctx, query, user.ID, user.Name, user.Mobile).Scan(&user.CreatedAt)
}

func (r *UserRepo) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, name, mobile, created_at, last_login_at FROM users WHERE mobile = $1`

	err := r.pool.QueryRow(ctx, query, mobile).Scan(
		&user.ID, &user.Name, &user.Mobile, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, name, mobile, created_at, last_login_at FROM users WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Mobile, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET name = $1 WHERE id = $2", name, id)
	return err
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $1 WHERE id = $2", time.Now(), id)
	return err
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	return err
}
