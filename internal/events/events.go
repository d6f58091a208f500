// Package events publishes committed lifecycle transitions to Kafka for
// downstream consumers (reminder scheduling, reporting). Emission is
// best-effort and never blocks or fails a lifecycle operation.
package events

import (
	"context"
	"time"
)

// LifecycleEvent describes one committed device transition.
type LifecycleEvent struct {
	Action       string    `json:"action"`
	DeviceID     string    `json:"device_id"`
	SerialNumber string    `json:"serial_number"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Producer emits lifecycle events.
type Producer interface {
	Emit(ctx context.Context, event *LifecycleEvent) error
	Close() error
}
