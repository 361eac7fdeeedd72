package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists notification records in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, n Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_notifications (id, tenant_id, kind, recipient, subject, body, status, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, nullif($9, ''))`,
		n.ID, n.TenantID, n.Kind, n.Recipient, n.Subject, n.Body, n.Status, n.Attempts, n.LastError)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, kind, recipient, subject, body, status, attempts,
			coalesce(last_error, ''), created_at, updated_at
		FROM email_notifications WHERE id = $1`, id)

	var n Notification
	err := row.Scan(&n.ID, &n.TenantID, &n.Kind, &n.Recipient, &n.Subject, &n.Body,
		&n.Status, &n.Attempts, &n.LastError, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Notification{}, fmt.Errorf("get notification %s: %w", id, err)
	}
	return n, nil
}

func (s *PGStore) Update(ctx context.Context, n Notification) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE email_notifications
		SET status = $2, attempts = $3, last_error = nullif($4, ''), updated_at = now()
		WHERE id = $1`,
		n.ID, n.Status, n.Attempts, n.LastError)
	if err != nil {
		return fmt.Errorf("update notification %s: %w", n.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, n.ID)
	}
	return nil
}
