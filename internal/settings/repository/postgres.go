package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/pyle/loaner/internal/settings/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a settings repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetLoanSettings returns loan settings from the DB, falling back to defaults
// for missing keys.
func (r *PostgresRepository) GetLoanSettings(ctx context.Context, defaults domain.LoanSettings) (*domain.LoanSettings, error) {
	out := defaults

	guest, err := r.get(ctx, "allow_guest_mode")
	if err != nil {
		return nil, err
	}
	if guest != "" {
		if v, err := parseBool(guest); err == nil {
			out.AllowGuestMode = v
		}
	}

	loanDays, err := r.get(ctx, "loan_duration_days")
	if err != nil {
		return nil, err
	}
	if v, err := strconv.Atoi(loanDays); err == nil && v > 0 {
		out.LoanDurationDays = v
	}

	maxDays, err := r.get(ctx, "maximum_loan_duration_days")
	if err != nil {
		return nil, err
	}
	if v, err := strconv.Atoi(maxDays); err == nil && v > 0 {
		out.MaximumLoanDurationDays = v
	}

	return &out, nil
}

// Set stores the raw value for key.
func (r *PostgresRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (r *PostgresRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}
