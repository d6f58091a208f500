package repository

import (
	"context"
	"errors"

	"github.com/pyle/loaner/internal/device/domain"
)

// ErrNotFound is returned by Mutate when no device row exists for the key.
var ErrNotFound = errors.New("device not found")

// Repository defines persistence for devices. Lookup methods return nil
// (not an error) for missing rows; errors are database failures only.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	GetBySerialNumber(ctx context.Context, serial string) (*domain.Device, error)
	GetByAssetTag(ctx context.Context, assetTag string) (*domain.Device, error)
	GetByChromeDeviceID(ctx context.Context, chromeDeviceID string) (*domain.Device, error)
	// GetMany returns the devices for ids, in the order given, skipping
	// ids that no longer resolve.
	GetMany(ctx context.Context, ids []string) ([]*domain.Device, error)
	// ListByUser returns devices assigned to userEmail, most recent
	// assignment first.
	ListByUser(ctx context.Context, userEmail string) ([]*domain.Device, error)
	ListByShelf(ctx context.Context, shelfID string) ([]*domain.Device, error)
	// ListAll returns every device; used to rebuild the search projection.
	ListAll(ctx context.Context) ([]*domain.Device, error)
	// Create persists the device. The device must have ID set.
	Create(ctx context.Context, d *domain.Device) error
	// Mutate runs fn against the device row for id under a per-key write
	// lock and persists the result atomically. If fn returns an error,
	// nothing is committed and that error is returned unchanged. Returns
	// ErrNotFound when id does not resolve.
	Mutate(ctx context.Context, id string, fn func(*domain.Device) error) (*domain.Device, error)
}
