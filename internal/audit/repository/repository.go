package repository

import (
	"context"

	"github.com/pyle/loaner/internal/audit/domain"
)

// Repository defines persistence for lifecycle audit events.
type Repository interface {
	// Create persists the event. The event must have ID set.
	Create(ctx context.Context, e *domain.Event) error
	// ListByDevice returns events for the device, newest first, paginated
	// by limit and offset.
	ListByDevice(ctx context.Context, deviceID string, limit, offset int32) ([]*domain.Event, error)
}
