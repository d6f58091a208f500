// Package domain defines the shelf entity: a physical, capacity-bounded
// location used for bulk device placement and listing.
package domain

import "time"

// Shelf represents a physical shelf location. It indexes devices by
// association only; it never owns their lifetime.
type Shelf struct {
	ID           string
	Location     string
	FriendlyName string
	Capacity     int
	Latitude     float64
	Longitude    float64
	Altitude     float64
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identifier returns the friendly name when set, else the location.
func (s *Shelf) Identifier() string {
	if s.FriendlyName != "" {
		return s.FriendlyName
	}
	return s.Location
}
