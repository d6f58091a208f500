package repository

import (
	"context"

	"github.com/pyle/loaner/internal/shelf/domain"
)

// Repository defines persistence for shelves.
type Repository interface {
	// GetByID returns the shelf for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Shelf, error)
	// GetByLocation returns the shelf at the given location, or nil if not found.
	GetByLocation(ctx context.Context, location string) (*domain.Shelf, error)
	// Create persists the shelf. The shelf must have ID set.
	Create(ctx context.Context, s *domain.Shelf) error
	// Update persists mutable shelf fields for an existing shelf.
	Update(ctx context.Context, s *domain.Shelf) error
	// Delete removes the shelf. Associated devices become shelf-less, never deleted.
	Delete(ctx context.Context, id string) error
}
