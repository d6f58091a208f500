package engine

import (
	"context"
	"time"

	devicedomain "github.com/pyle/loaner/internal/device/domain"
	settingsdomain "github.com/pyle/loaner/internal/settings/domain"
)

// ExtendResult holds the result of loan-extension policy evaluation.
type ExtendResult struct {
	Allowed      bool
	MaxDueDate   time.Time
	DeniedReason string
}

// Evaluator evaluates loan policy using OPA or other engines.
type Evaluator interface {
	// EvaluateExtend decides whether the device's loan may be extended to
	// newDueDate, given current settings. now anchors the loan horizon.
	EvaluateExtend(
		ctx context.Context,
		settings *settingsdomain.LoanSettings,
		device *devicedomain.Device,
		newDueDate time.Time,
		now time.Time,
	) (ExtendResult, error)
}
