// Package audit records lifecycle actions on devices. Recording is
// best-effort: a failed write never fails the lifecycle operation that
// triggered it.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pyle/loaner/internal/audit/domain"
	auditrepo "github.com/pyle/loaner/internal/audit/repository"
)

// SystemActor is recorded for events with no resolved caller (e.g. startup
// reconciliation).
const SystemActor = "_system"

// EventLogger writes a single lifecycle audit event. Used by every
// lifecycle transition and by DeviceAuditCheck.
type EventLogger interface {
	LogEvent(ctx context.Context, action, deviceID, actor, metadata string)
}

// Logger implements EventLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an EventLogger that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit event. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, action, deviceID, actor, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if actor == "" {
		actor = SystemActor
	}
	e := &domain.Event{
		ID:        uuid.New().String(),
		Action:    action,
		DeviceID:  deviceID,
		Actor:     actor,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("audit: failed to log event %s for device %s: %v", action, deviceID, err)
	}
}

// History returns the recorded events for a device, newest first. Unlike
// LogEvent, read failures are returned to the caller.
func (l *Logger) History(ctx context.Context, deviceID string, limit, offset int32) ([]*domain.Event, error) {
	if l == nil || l.repo == nil {
		return nil, nil
	}
	return l.repo.ListByDevice(ctx, deviceID, limit, offset)
}
