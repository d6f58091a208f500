package domain

import "time"

// Event represents one recorded lifecycle action on a device.
type Event struct {
	ID        string
	Action    string
	DeviceID  string
	Actor     string
	Metadata  string
	CreatedAt time.Time
}
