// Package directory defines the external device-registry client used to
// mirror enrollment and organizational-unit moves. The registry is an
// external collaborator: implementations must be injectable so tests can
// substitute a double.
package directory

import (
	"context"
	"errors"
	"time"
)

const defaultTimeout = 15 * time.Second

// Sentinel errors. Callers distinguish missing devices and the registry's
// guest-mode-disabled signal from plain RPC failure.
var (
	// ErrDeviceNotFound is returned when the registry has no device for the serial.
	ErrDeviceNotFound = errors.New("directory: device not found")
	// ErrGuestModeDisabled is the registry's signal that guest mode is disabled for the domain.
	ErrGuestModeDisabled = errors.New("directory: guest mode disabled")
	// ErrRPC is returned for transport or registry-side failures.
	ErrRPC = errors.New("directory: request failed")
)

// DeviceRecord is the registry's view of a device.
type DeviceRecord struct {
	SerialNumber   string `json:"serialNumber"`
	ChromeDeviceID string `json:"deviceId"`
	Model          string `json:"model"`
	OrgUnitPath    string `json:"orgUnitPath"`
	Status         string `json:"status"`
}

// Client is the registry operations the lifecycle engine depends on.
type Client interface {
	// GetDevice returns the registry record for the given serial number.
	// Returns ErrDeviceNotFound when the registry does not know the serial.
	GetDevice(ctx context.Context, serialNumber string) (*DeviceRecord, error)
	// MoveDeviceToOrgUnit moves the device into orgUnit. Returns
	// ErrGuestModeDisabled when orgUnit is the guest OU and the registry
	// rejects guest mode; ErrRPC for any other failure.
	MoveDeviceToOrgUnit(ctx context.Context, chromeDeviceID, orgUnit string) error
	// GivenName returns the display given name for userEmail. Best-effort:
	// callers must tolerate an error and fall back to an empty name.
	GivenName(ctx context.Context, userEmail string) (string, error)
}
