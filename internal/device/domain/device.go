// Package domain defines the loanable device entity and its loan invariants.
package domain

import "time"

// Device represents a loanable device tracked through the
// enrollment-and-loan lifecycle. A device is "assigned" iff AssignedUser is
// non-empty; AssignmentDate and DueDate are set and cleared together with it.
type Device struct {
	ID             string
	SerialNumber   string
	AssetTag       string
	ChromeDeviceID string

	Enrolled      bool
	DeviceModel   string
	CurrentOU     string
	OUChangedDate *time.Time

	// ShelfID is an association, not an ownership edge: deleting a shelf
	// leaves its devices shelf-less.
	ShelfID string

	AssignedUser   string
	AssignmentDate *time.Time
	DueDate        *time.Time
	// MarkPendingReturnDate marks the pending-return sub-state of an active
	// assignment, awaiting physical return confirmation.
	MarkPendingReturnDate *time.Time

	Locked        bool
	Lost          bool
	Damaged       bool
	DamagedReason string

	LastKnownHealthy *time.Time
	LastHeartbeat    *time.Time
	LastAuditTime    *time.Time

	LastReminderLevel int
	NextReminderTime  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assigned reports whether the device is currently on loan.
func (d *Device) Assigned() bool {
	return d.AssignedUser != ""
}

// PendingReturn reports whether an assigned device is awaiting physical
// return confirmation.
func (d *Device) PendingReturn() bool {
	return d.Assigned() && d.MarkPendingReturnDate != nil
}

// Assign begins a loan to userEmail at now with the given duration.
// AssignedUser, AssignmentDate, and DueDate move in lockstep.
func (d *Device) Assign(userEmail string, now time.Time, duration time.Duration) {
	assigned := now
	due := now.Add(duration)
	d.AssignedUser = userEmail
	d.AssignmentDate = &assigned
	d.DueDate = &due
	d.MarkPendingReturnDate = nil
}

// ClearAssignment ends the loan, clearing all assignment fields together.
func (d *Device) ClearAssignment() {
	d.AssignedUser = ""
	d.AssignmentDate = nil
	d.DueDate = nil
	d.MarkPendingReturnDate = nil
	d.LastReminderLevel = 0
	d.NextReminderTime = nil
}
