package service

import (
	"context"
	"errors"
	"fmt"

	devicedomain "github.com/pyle/loaner/internal/device/domain"
	"github.com/pyle/loaner/internal/device/repository"
	"github.com/pyle/loaner/internal/search"
)

// Identifier carries the ways a caller may name a device. Resolution is
// ordered: ID, then serial number, then asset tag, then Chrome device ID,
// then free-text search over the index. The first identifier that resolves
// wins; weaker identifiers are ignored once a stronger one matches.
type Identifier struct {
	ID             string
	SerialNumber   string
	AssetTag       string
	ChromeDeviceID string
	Unknown        string
}

func (i Identifier) empty() bool {
	return i.ID == "" && i.SerialNumber == "" && i.AssetTag == "" && i.ChromeDeviceID == "" && i.Unknown == ""
}

// lookup resolves ident to a device, returning (nil, nil) when no device
// matches. Errors are reserved for infrastructure failures.
func (s *Lifecycle) lookup(ctx context.Context, ident Identifier) (*devicedomain.Device, error) {
	if ident.empty() {
		return nil, ErrNoIdentifier
	}
	type direct struct {
		value string
		get   func(context.Context, string) (*devicedomain.Device, error)
	}
	for _, l := range []direct{
		{ident.ID, s.devices.GetByID},
		{ident.SerialNumber, s.devices.GetBySerialNumber},
		{ident.AssetTag, s.devices.GetByAssetTag},
		{ident.ChromeDeviceID, s.devices.GetByChromeDeviceID},
	} {
		if l.value == "" {
			continue
		}
		d, err := l.get(ctx, l.value)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("device lookup: %w", err)
		}
		if d != nil {
			return d, nil
		}
	}
	if ident.Unknown != "" {
		return s.lookupUnknown(ctx, ident.Unknown)
	}
	return nil, nil
}

// lookupUnknown treats value as a free-text identifier: it is tried against
// each exact identifier column first, then against the search index.
func (s *Lifecycle) lookupUnknown(ctx context.Context, value string) (*devicedomain.Device, error) {
	for _, get := range []func(context.Context, string) (*devicedomain.Device, error){
		s.devices.GetByID,
		s.devices.GetBySerialNumber,
		s.devices.GetByAssetTag,
		s.devices.GetByChromeDeviceID,
	} {
		d, err := get(ctx, value)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("device lookup: %w", err)
		}
		if d != nil {
			return d, nil
		}
	}
	if s.index == nil {
		return nil, nil
	}
	res, err := s.index.Query(ctx, search.Query{Text: value}, 1, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if len(res.IDs) == 0 {
		return nil, nil
	}
	d, err := s.devices.GetByID(ctx, res.IDs[0])
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	return d, nil
}

// resolve is lookup with a hard not-found result.
func (s *Lifecycle) resolve(ctx context.Context, ident Identifier) (*devicedomain.Device, error) {
	d, err := s.lookup(ctx, ident)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	return d, nil
}
