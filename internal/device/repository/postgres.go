package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pyle/loaner/internal/device/domain"
)

const deviceColumns = `id, serial_number, asset_tag, chrome_device_id, enrolled, device_model,
	current_ou, ou_changed_date, shelf_id, assigned_user, assignment_date, due_date,
	mark_pending_return_date, locked, lost, damaged, damaged_reason,
	last_known_healthy, last_heartbeat, last_audit_time,
	last_reminder_level, next_reminder_time, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

// GetBySerialNumber returns the device with the given serial number, or nil if not found.
func (r *PostgresRepository) GetBySerialNumber(ctx context.Context, serial string) (*domain.Device, error) {
	return r.getWhere(ctx, `serial_number = $1`, serial)
}

// GetByAssetTag returns the device with the given asset tag, or nil if not found.
func (r *PostgresRepository) GetByAssetTag(ctx context.Context, assetTag string) (*domain.Device, error) {
	return r.getWhere(ctx, `asset_tag = $1`, assetTag)
}

// GetByChromeDeviceID returns the device with the given Chrome device id, or nil if not found.
func (r *PostgresRepository) GetByChromeDeviceID(ctx context.Context, chromeDeviceID string) (*domain.Device, error) {
	return r.getWhere(ctx, `chrome_device_id = $1`, chromeDeviceID)
}

// GetMany returns the devices for ids in the order given. Ids that no
// longer resolve are skipped, not errors: the search projection may lag
// behind deletes.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) ([]*domain.Device, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.Device, len(ids))
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*domain.Device, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListByUser returns devices assigned to userEmail, most recent assignment first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userEmail string) ([]*domain.Device, error) {
	return r.listWhere(ctx, `assigned_user = $1 ORDER BY assignment_date DESC`, userEmail)
}

// ListByShelf returns devices associated with the given shelf.
func (r *PostgresRepository) ListByShelf(ctx context.Context, shelfID string) ([]*domain.Device, error) {
	return r.listWhere(ctx, `shelf_id = $1 ORDER BY serial_number`, shelfID)
}

// ListAll returns every device, ordered by id for a deterministic rebuild.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDevices(rows)
}

// Create persists the device to the database. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		deviceArgs(d)...)
	return err
}

// Mutate loads the device row for id with a row-level write lock, applies
// fn, and persists the result in the same transaction. A fn error aborts
// the transaction with nothing committed.
func (r *PostgresRepository) Mutate(ctx context.Context, id string, fn func(*domain.Device) error) (*domain.Device, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := fn(d); err != nil {
		return nil, err
	}
	d.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE devices SET
			serial_number = $2, asset_tag = $3, chrome_device_id = $4, enrolled = $5,
			device_model = $6, current_ou = $7, ou_changed_date = $8, shelf_id = $9,
			assigned_user = $10, assignment_date = $11, due_date = $12,
			mark_pending_return_date = $13, locked = $14, lost = $15, damaged = $16,
			damaged_reason = $17, last_known_healthy = $18, last_heartbeat = $19,
			last_audit_time = $20, last_reminder_level = $21, next_reminder_time = $22,
			updated_at = $23
		WHERE id = $1`,
		d.ID, d.SerialNumber, nullString(d.AssetTag), nullString(d.ChromeDeviceID), d.Enrolled,
		d.DeviceModel, d.CurrentOU, nullTime(d.OUChangedDate), nullString(d.ShelfID),
		nullString(d.AssignedUser), nullTime(d.AssignmentDate), nullTime(d.DueDate),
		nullTime(d.MarkPendingReturnDate), d.Locked, d.Lost, d.Damaged,
		nullString(d.DamagedReason), nullTime(d.LastKnownHealthy), nullTime(d.LastHeartbeat),
		nullTime(d.LastAuditTime), d.LastReminderLevel, nullTime(d.NextReminderTime),
		d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepository) getWhere(ctx context.Context, where string, arg any) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE `+where, arg)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepository) listWhere(ctx context.Context, where string, arg any) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDevices(rows)
}

func collectDevices(rows *sql.Rows) ([]*domain.Device, error) {
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*domain.Device, error) {
	var (
		d                                   domain.Device
		assetTag, chromeID, shelfID         sql.NullString
		assignedUser, damagedReason         sql.NullString
		ouChanged, assignment, due, pending sql.NullTime
		healthy, heartbeat, audit, reminder sql.NullTime
	)
	err := row.Scan(&d.ID, &d.SerialNumber, &assetTag, &chromeID, &d.Enrolled, &d.DeviceModel,
		&d.CurrentOU, &ouChanged, &shelfID, &assignedUser, &assignment, &due,
		&pending, &d.Locked, &d.Lost, &d.Damaged, &damagedReason,
		&healthy, &heartbeat, &audit,
		&d.LastReminderLevel, &reminder, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.AssetTag = assetTag.String
	d.ChromeDeviceID = chromeID.String
	d.ShelfID = shelfID.String
	d.AssignedUser = assignedUser.String
	d.DamagedReason = damagedReason.String
	d.OUChangedDate = timePtr(ouChanged)
	d.AssignmentDate = timePtr(assignment)
	d.DueDate = timePtr(due)
	d.MarkPendingReturnDate = timePtr(pending)
	d.LastKnownHealthy = timePtr(healthy)
	d.LastHeartbeat = timePtr(heartbeat)
	d.LastAuditTime = timePtr(audit)
	d.NextReminderTime = timePtr(reminder)
	return &d, nil
}

func deviceArgs(d *domain.Device) []any {
	return []any{
		d.ID, d.SerialNumber, nullString(d.AssetTag), nullString(d.ChromeDeviceID), d.Enrolled,
		d.DeviceModel, d.CurrentOU, nullTime(d.OUChangedDate), nullString(d.ShelfID),
		nullString(d.AssignedUser), nullTime(d.AssignmentDate), nullTime(d.DueDate),
		nullTime(d.MarkPendingReturnDate), d.Locked, d.Lost, d.Damaged,
		nullString(d.DamagedReason), nullTime(d.LastKnownHealthy), nullTime(d.LastHeartbeat),
		nullTime(d.LastAuditTime), d.LastReminderLevel, nullTime(d.NextReminderTime),
		d.CreatedAt, d.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
