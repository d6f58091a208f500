package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	auditdomain "github.com/pyle/loaner/internal/audit/domain"
	devicedomain "github.com/pyle/loaner/internal/device/domain"
	"github.com/pyle/loaner/internal/directory"
)

// Audit and event stream action names.
const (
	ActionEnroll          = "device_enroll"
	ActionUnenroll        = "device_unenroll"
	ActionAssign          = "device_assign"
	ActionExtendLoan      = "device_extend_loan"
	ActionMarkDamaged     = "device_mark_damaged"
	ActionClearDamaged    = "device_clear_damaged"
	ActionMarkLost        = "device_mark_lost"
	ActionPendingReturn   = "device_mark_pending_return"
	ActionResumeLoan      = "device_resume_loan"
	ActionEnableGuestMode = "device_enable_guest_mode"
	ActionAuditCheck      = "device_audit_check"
)

// DeviceDetails is a resolved device together with best-effort directory
// data about the assignee.
type DeviceDetails struct {
	Device *devicedomain.Device

	// GivenName of the current assignee, empty when the device is
	// unassigned or the directory lookup failed.
	GivenName string
}

// GetDevice resolves ident and decorates the result with the assignee's
// given name. A directory failure never fails the read.
func (s *Lifecycle) GetDevice(ctx context.Context, ident Identifier) (*DeviceDetails, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	details := &DeviceDetails{Device: d}
	if d.AssignedUser != "" && s.directory != nil {
		name, err := s.directory.GivenName(ctx, d.AssignedUser)
		if err == nil {
			details.GivenName = name
		}
	}
	return details, nil
}

// Enroll brings a device under management. The device must exist in the
// directory registry; it is moved into the default org unit when needed.
// Re-enrolling a previously unenrolled device reactivates the existing
// record and clears the lost and locked flags. Damage state is untouched.
func (s *Lifecycle) Enroll(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	existing, err := s.lookup(ctx, ident)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Enrolled {
		return nil, ErrAlreadyEnrolled
	}

	serial := ident.SerialNumber
	if serial == "" && ident.Unknown != "" {
		serial = ident.Unknown
	}
	if existing != nil {
		serial = existing.SerialNumber
	}
	if serial == "" {
		return nil, fmt.Errorf("%w: a serial number is required", ErrEnrollmentFailed)
	}

	rec, err := s.directory.GetDevice(ctx, serial)
	if err != nil {
		if errors.Is(err, directory.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: serial %q is not in the device registry", ErrEnrollmentFailed, serial)
		}
		return nil, fmt.Errorf("%w: %v", ErrDirectory, err)
	}
	if rec.OrgUnitPath != s.orgUnits.Default {
		if err := s.directory.MoveDeviceToOrgUnit(ctx, rec.ChromeDeviceID, s.orgUnits.Default); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectory, err)
		}
	}

	now := s.nowF()
	var enrolled *devicedomain.Device
	if existing == nil {
		enrolled = &devicedomain.Device{
			ID:               uuid.NewString(),
			SerialNumber:     rec.SerialNumber,
			AssetTag:         ident.AssetTag,
			ChromeDeviceID:   rec.ChromeDeviceID,
			Enrolled:         true,
			DeviceModel:      rec.Model,
			CurrentOU:        s.orgUnits.Default,
			OUChangedDate:    &now,
			LastKnownHealthy: &now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.devices.Create(ctx, enrolled); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnrollmentFailed, err)
		}
	} else {
		enrolled, err = s.devices.Mutate(ctx, existing.ID, func(d *devicedomain.Device) error {
			if d.Enrolled {
				return ErrAlreadyEnrolled
			}
			d.Enrolled = true
			d.Lost = false
			d.Locked = false
			d.ChromeDeviceID = rec.ChromeDeviceID
			d.DeviceModel = rec.Model
			d.CurrentOU = s.orgUnits.Default
			d.OUChangedDate = &now
			d.LastKnownHealthy = &now
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	s.committed(ctx, ActionEnroll, enrolled, caller.Email, "")
	return enrolled, nil
}

// Unenroll removes a device from management. The directory move out of the
// managed org unit happens inside the mutation: if the move fails, no state
// change is committed.
func (s *Lifecycle) Unenroll(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Enrolled {
			return ErrNotEnrolled
		}
		if err := s.directory.MoveDeviceToOrgUnit(ctx, d.ChromeDeviceID, s.orgUnits.Unenrolled); err != nil {
			return fmt.Errorf("%w: %v", ErrUnenrollFailed, err)
		}
		d.Enrolled = false
		d.ClearAssignment()
		d.ShelfID = ""
		d.CurrentOU = s.orgUnits.Unenrolled
		d.OUChangedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionUnenroll, updated, caller.Email, "")
	return updated, nil
}

// Assign starts a loan for userEmail using the configured loan duration.
func (s *Lifecycle) Assign(ctx context.Context, ident Identifier, caller Caller, userEmail string) (*devicedomain.Device, error) {
	if userEmail == "" {
		return nil, ErrAssigneeRequired
	}
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	settings, err := s.loanSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loan settings: %w", err)
	}
	duration := time.Duration(settings.LoanDurationDays) * 24 * time.Hour
	now := s.nowF()
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Enrolled {
			return ErrNotEnrolled
		}
		if d.Lost {
			return ErrDeviceLost
		}
		if d.Assigned() {
			return ErrAlreadyAssigned
		}
		d.Assign(userEmail, now, duration)
		d.ShelfID = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionAssign, updated, caller.Email, "assignee="+userEmail)
	return updated, nil
}

// ExtendLoan moves the due date of the caller's loan to newDueDate, subject
// to the loan extension policy.
func (s *Lifecycle) ExtendLoan(ctx context.Context, ident Identifier, caller Caller, newDueDate time.Time) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !d.Assigned() {
		return nil, ErrUnassignedDevice
	}
	if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
		return nil, err
	}
	settings, err := s.loanSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loan settings: %w", err)
	}
	now := s.nowF()
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Assigned() {
			return ErrUnassignedDevice
		}
		if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
			return err
		}
		if d.Lost {
			return ErrDeviceLost
		}
		if d.Damaged {
			return ErrDeviceDamaged
		}
		res, err := s.policy.EvaluateExtend(ctx, settings, d, newDueDate, now)
		if err != nil {
			return fmt.Errorf("extension policy: %w", err)
		}
		if !res.Allowed {
			return fmt.Errorf("%w: %s", ErrExtendRejected, res.DeniedReason)
		}
		d.DueDate = &newDueDate
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionExtendLoan, updated, caller.Email, "due="+newDueDate.Format(time.RFC3339))
	return updated, nil
}

// MarkDamaged flags a device as damaged with an optional reason. An
// administrative caller may damage-flag any device; otherwise the caller
// must be the current assignee.
func (s *Lifecycle) MarkDamaged(ctx context.Context, ident Identifier, caller Caller, reason string) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !caller.Admin {
		if !d.Assigned() {
			return nil, ErrUnassignedDevice
		}
		if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
			return nil, err
		}
	}
	if reason == "" {
		reason = "Unspecified"
	}
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		d.Damaged = true
		d.DamagedReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionMarkDamaged, updated, caller.Email, "reason="+reason)
	return updated, nil
}

// ClearDamaged removes the damaged flag. Administrative callers only.
func (s *Lifecycle) ClearDamaged(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	if !caller.Admin {
		return nil, ErrAdminOnly
	}
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		d.Damaged = false
		d.DamagedReason = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionClearDamaged, updated, caller.Email, "")
	return updated, nil
}

// MarkLost flags a device as lost, locks it, and ends the current loan.
// Administrative callers only.
func (s *Lifecycle) MarkLost(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	if !caller.Admin {
		return nil, ErrAdminOnly
	}
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		d.Lost = true
		d.Locked = true
		d.ClearAssignment()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionMarkLost, updated, caller.Email, "")
	return updated, nil
}

// MarkPendingReturn records the assignee's intent to return the device.
func (s *Lifecycle) MarkPendingReturn(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !d.Assigned() {
		return nil, ErrUnassignedDevice
	}
	if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
		return nil, err
	}
	now := s.nowF()
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Assigned() {
			return ErrUnassignedDevice
		}
		if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
			return err
		}
		if d.Damaged {
			return ErrDeviceDamaged
		}
		d.MarkPendingReturnDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionPendingReturn, updated, caller.Email, "")
	return updated, nil
}

// ResumeLoan cancels a pending return and continues the loan unchanged.
func (s *Lifecycle) ResumeLoan(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !d.Assigned() {
		return nil, ErrUnassignedDevice
	}
	if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
		return nil, err
	}
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Assigned() {
			return ErrUnassignedDevice
		}
		if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
			return err
		}
		if d.Damaged {
			return ErrDeviceDamaged
		}
		if !d.PendingReturn() {
			return ErrNotPendingReturn
		}
		d.MarkPendingReturnDate = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionResumeLoan, updated, caller.Email, "")
	return updated, nil
}

// EnableGuestMode moves the caller's device into the guest org unit. Guest
// mode must be allowed by the runtime loan settings, and the directory may
// still refuse the move for an individual device.
func (s *Lifecycle) EnableGuestMode(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !d.Assigned() {
		return nil, ErrUnassignedDevice
	}
	if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
		return nil, err
	}
	settings, err := s.loanSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loan settings: %w", err)
	}
	if !settings.AllowGuestMode {
		return nil, ErrGuestNotAllowed
	}
	now := s.nowF()
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Assigned() {
			return ErrUnassignedDevice
		}
		if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
			return err
		}
		if d.Damaged {
			return ErrDeviceDamaged
		}
		if err := s.directory.MoveDeviceToOrgUnit(ctx, d.ChromeDeviceID, s.orgUnits.Guest); err != nil {
			if errors.Is(err, directory.ErrGuestModeDisabled) {
				return ErrGuestNotAllowed
			}
			return fmt.Errorf("%w: %v", ErrDirectory, err)
		}
		d.CurrentOU = s.orgUnits.Guest
		d.OUChangedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionEnableGuestMode, updated, caller.Email, "")
	return updated, nil
}

// DeviceAuditCheck records a successful shelf audit observation for the
// device and refreshes its healthy timestamp.
func (s *Lifecycle) DeviceAuditCheck(ctx context.Context, ident Identifier, caller Caller) (*devicedomain.Device, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	updated, err := s.devices.Mutate(ctx, d.ID, func(d *devicedomain.Device) error {
		if !d.Enrolled {
			return ErrNotEnrolled
		}
		if d.Damaged {
			return ErrDeviceDamaged
		}
		d.LastAuditTime = &now
		d.LastKnownHealthy = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, ActionAuditCheck, updated, caller.Email, "")
	return updated, nil
}

// History page bounds for DeviceHistory.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// DeviceHistory returns the audit trail for a device, newest first. The
// current assignee may read their own device; any other caller needs the
// administrative flag. Returns an empty trail when auditing is disabled.
func (s *Lifecycle) DeviceHistory(ctx context.Context, ident Identifier, caller Caller, limit, offset int32) ([]*auditdomain.Event, error) {
	d, err := s.resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !caller.Admin {
		if err := ConfirmAssigneeAction(caller.Email, d); err != nil {
			return nil, err
		}
	}
	if s.audit == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.audit.History(ctx, d.ID, limit, offset)
}
