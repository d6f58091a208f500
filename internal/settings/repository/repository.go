package repository

import (
	"context"

	"github.com/pyle/loaner/internal/settings/domain"
)

// Repository defines read/write access to runtime loan settings.
type Repository interface {
	// GetLoanSettings returns current loan settings. Keys missing from the
	// store fall back to the given defaults.
	GetLoanSettings(ctx context.Context, defaults domain.LoanSettings) (*domain.LoanSettings, error)
	// Set stores the raw value for key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
