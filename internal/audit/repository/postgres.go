package repository

import (
	"context"
	"database/sql"

	"github.com/pyle/loaner/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the event to the database. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, device_id, actor, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Action, e.DeviceID, e.Actor, e.Metadata, e.CreatedAt)
	return err
}

// ListByDevice returns events for the device, newest first.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, device_id, actor, metadata, created_at
		FROM audit_events
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Action, &e.DeviceID, &e.Actor, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
