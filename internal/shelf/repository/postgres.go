package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pyle/loaner/internal/shelf/domain"
)

const shelfColumns = `id, location, friendly_name, capacity, latitude, longitude, altitude, enabled, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a shelf repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the shelf for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Shelf, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shelfColumns+` FROM shelves WHERE id = $1`, id)
	return scanShelf(row)
}

// GetByLocation returns the shelf at the given location, or nil if not found.
func (r *PostgresRepository) GetByLocation(ctx context.Context, location string) (*domain.Shelf, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shelfColumns+` FROM shelves WHERE location = $1`, location)
	return scanShelf(row)
}

// Create persists the shelf to the database. The shelf must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Shelf) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shelves (id, location, friendly_name, capacity, latitude, longitude, altitude, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		s.ID, s.Location, s.FriendlyName, s.Capacity, s.Latitude, s.Longitude, s.Altitude, s.Enabled, s.CreatedAt)
	return err
}

// Update persists mutable shelf fields for an existing shelf.
func (r *PostgresRepository) Update(ctx context.Context, s *domain.Shelf) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE shelves
		SET location = $2, friendly_name = $3, capacity = $4, latitude = $5,
		    longitude = $6, altitude = $7, enabled = $8, updated_at = now()
		WHERE id = $1`,
		s.ID, s.Location, s.FriendlyName, s.Capacity, s.Latitude, s.Longitude, s.Altitude, s.Enabled)
	return err
}

// Delete removes the shelf and detaches its devices. Devices are never
// cascade-deleted; their shelf reference is cleared in the same transaction.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE devices SET shelf_id = NULL, updated_at = now() WHERE shelf_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shelves WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanShelf(row *sql.Row) (*domain.Shelf, error) {
	var s domain.Shelf
	err := row.Scan(&s.ID, &s.Location, &s.FriendlyName, &s.Capacity,
		&s.Latitude, &s.Longitude, &s.Altitude, &s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
