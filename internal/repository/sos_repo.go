package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emitra-backend/internal/models"
)

type SOSRepo struct {
	pool *pgxpool.Pool
}

func NewSOSRepo(pool *pgxpool.Pool) *SOSRepo {
	return &SOSRepo{pool: pool}
}

const sosColumns = `id, user_id, latitude, longitude, status, suggestions, error_message, retry_count, created_at, completed_at`

func scanSOSEvent(row pgx.Row) (*models.SOSEvent, error) {
	e := &models.SOSEvent{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.Latitude, &e.Longitude, &e.Status,
		&e.Suggestions, &e.ErrorMessage, &e.RetryCount, &e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *SOSRepo) Create(ctx context.Context, e *models.SOSEvent) error {
	query := `
		INSERT INTO sos_events (id, user_id, latitude, longitude, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	e.ID = uuid.New()
	if e.Status == "" {
		e.Status = models.SOSStatusPending
	}

	return r.pool.QueryRow(ctx, query, e.ID, e.UserID, e.Latitude, e.Longitude, e.Status).Scan(&e.CreatedAt)
}

func (r *SOSRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SOSEvent, error) {
	return scanSOSEvent(r.pool.QueryRow(ctx, `SELECT `+sosColumns+` FROM sos_events WHERE id = $1`, id))
}

func (r *SOSRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.SOSEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sosColumns+` FROM sos_events WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.SOSEvent{}
	for rows.Next() {
		e, err := scanSOSEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SOSRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE sos_events SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *SOSRepo) IncrementRetry(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE sos_events SET retry_count = retry_count + 1, status = $1 WHERE id = $2", models.SOSStatusPending, id)
	return err
}

func (r *SOSRepo) Complete(ctx context.Context, id uuid.UUID, suggestions string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sos_events SET status = $1, suggestions = $2, error_message = NULL, completed_at = $3 WHERE id = $4",
		models.SOSStatusCompleted, suggestions, time.Now(), id,
	)
	return err
}

func (r *SOSRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sos_events SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4",
		models.SOSStatusFailed, message, time.Now(), id,
	)
	return err
}
