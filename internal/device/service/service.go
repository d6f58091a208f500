// Package service implements the device lifecycle engine and the fleet
// query service. Every state transition is validated against current
// device state and applied through a per-key transactional mutation; the
// search projection and lifecycle event stream are updated after commit.
package service

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/pyle/loaner/internal/audit/domain"
	devicedomain "github.com/pyle/loaner/internal/device/domain"
	"github.com/pyle/loaner/internal/directory"
	"github.com/pyle/loaner/internal/events"
	policyengine "github.com/pyle/loaner/internal/policy/engine"
	"github.com/pyle/loaner/internal/search"
	settingsdomain "github.com/pyle/loaner/internal/settings/domain"
	shelfdomain "github.com/pyle/loaner/internal/shelf/domain"
)

// Sentinel errors for the lifecycle engine; the API layer maps them to the
// four external error kinds (not found, invalid request, unauthorized,
// internal).
var (
	ErrNotFound         = errors.New("no device could be found for the given identifier")
	ErrNoIdentifier     = errors.New("at least one device identifier must be provided")
	ErrShelfNotFound    = errors.New("no shelf could be found for the given criteria")
	ErrAlreadyEnrolled  = errors.New("device is already enrolled")
	ErrNotEnrolled      = errors.New("device is not enrolled")
	ErrEnrollmentFailed = errors.New("device could not be enrolled")
	ErrUnenrollFailed   = errors.New("device could not be moved out of the managed org unit")
	ErrAlreadyAssigned  = errors.New("device is already assigned")
	ErrAssigneeRequired = errors.New("an assignee email is required")
	ErrDeviceLost       = errors.New("device is marked lost")
	ErrDeviceDamaged    = errors.New("device is marked damaged")
	ErrUnassignedDevice = errors.New("unassigned device")
	ErrNotAssignee      = errors.New("requesting user is not the current assignee")
	ErrAdminOnly        = errors.New("operation requires an administrative caller")
	ErrGuestNotAllowed  = errors.New("guest mode is not allowed")
	ErrExtendRejected   = errors.New("loan extension rejected")
	ErrNotPendingReturn = errors.New("device is not marked for pending return")
	ErrInvalidPageToken = errors.New("invalid page token")
	ErrIndexUnavailable = errors.New("search index unavailable")
	ErrDirectory        = errors.New("directory service failure")
)

// Caller is the resolved identity handed down by the excluded API layer.
// Admin marks a pre-authorized administrative caller.
type Caller struct {
	Email string
	Admin bool
}

// DeviceRepo is the minimal device repository needed by the engine.
type DeviceRepo interface {
	GetByID(ctx context.Context, id string) (*devicedomain.Device, error)
	GetBySerialNumber(ctx context.Context, serial string) (*devicedomain.Device, error)
	GetByAssetTag(ctx context.Context, assetTag string) (*devicedomain.Device, error)
	GetByChromeDeviceID(ctx context.Context, chromeDeviceID string) (*devicedomain.Device, error)
	GetMany(ctx context.Context, ids []string) ([]*devicedomain.Device, error)
	ListByUser(ctx context.Context, userEmail string) ([]*devicedomain.Device, error)
	ListByShelf(ctx context.Context, shelfID string) ([]*devicedomain.Device, error)
	Create(ctx context.Context, d *devicedomain.Device) error
	Mutate(ctx context.Context, id string, fn func(*devicedomain.Device) error) (*devicedomain.Device, error)
}

// ShelfRepo is the minimal shelf repository needed for shelf-filtered listing.
type ShelfRepo interface {
	GetByID(ctx context.Context, id string) (*shelfdomain.Shelf, error)
	GetByLocation(ctx context.Context, location string) (*shelfdomain.Shelf, error)
}

// SettingsRepo reads runtime loan settings at call time.
type SettingsRepo interface {
	GetLoanSettings(ctx context.Context, defaults settingsdomain.LoanSettings) (*settingsdomain.LoanSettings, error)
}

// Indexer receives committed device state for the search projection.
type Indexer interface {
	Upsert(d *devicedomain.Device)
	Delete(id string)
}

// EventLogger records lifecycle audit events and serves the per-device
// audit trail read. Recording is best-effort.
type EventLogger interface {
	LogEvent(ctx context.Context, action, deviceID, actor, metadata string)
	History(ctx context.Context, deviceID string, limit, offset int32) ([]*auditdomain.Event, error)
}

// OrgUnits names the organizational units devices move between.
type OrgUnits struct {
	Default    string
	Guest      string
	Unenrolled string
}

// Lifecycle validates and applies every device state transition.
type Lifecycle struct {
	devices   DeviceRepo
	directory directory.Client
	settings  SettingsRepo
	defaults  settingsdomain.LoanSettings
	policy    policyengine.Evaluator
	audit     EventLogger
	producer  events.Producer
	indexer   Indexer
	index     search.Index
	orgUnits  OrgUnits
	nowF      func() time.Time
}

// NewLifecycle returns a Lifecycle engine with the given collaborators.
// audit, producer, and indexer may be nil (the concern is disabled).
func NewLifecycle(
	devices DeviceRepo,
	dir directory.Client,
	settings SettingsRepo,
	defaults settingsdomain.LoanSettings,
	policy policyengine.Evaluator,
	auditLog EventLogger,
	producer events.Producer,
	indexer Indexer,
	index search.Index,
	orgUnits OrgUnits,
) *Lifecycle {
	return &Lifecycle{
		devices:   devices,
		directory: dir,
		settings:  settings,
		defaults:  defaults,
		policy:    policy,
		audit:     auditLog,
		producer:  producer,
		indexer:   indexer,
		index:     index,
		orgUnits:  orgUnits,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// ConfirmAssigneeAction succeeds iff requestingUser currently holds the
// loan on device. Pure validation shared by every assignee-restricted
// transition; no side effects.
func ConfirmAssigneeAction(requestingUser string, device *devicedomain.Device) error {
	if device.AssignedUser != requestingUser {
		return ErrNotAssignee
	}
	return nil
}

// loanSettings reads settings at call time, falling back to defaults when
// no settings store is wired.
func (s *Lifecycle) loanSettings(ctx context.Context) (*settingsdomain.LoanSettings, error) {
	if s.settings == nil {
		out := s.defaults
		return &out, nil
	}
	return s.settings.GetLoanSettings(ctx, s.defaults)
}

// committed runs the post-commit fan-out for a mutated device: search
// projection, audit trail, and lifecycle event stream. All best-effort.
func (s *Lifecycle) committed(ctx context.Context, action string, d *devicedomain.Device, actor, metadata string) {
	if s.indexer != nil {
		s.indexer.Upsert(d)
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, action, d.ID, actor, metadata)
	}
	events.EmitAsync(s.producer, ctx, &events.LifecycleEvent{
		Action:       action,
		DeviceID:     d.ID,
		SerialNumber: d.SerialNumber,
		Actor:        actor,
		OccurredAt:   s.nowF(),
	})
}
