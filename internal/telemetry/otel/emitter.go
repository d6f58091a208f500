package otel

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/pyle/loaner/internal/events"
)

// logBackend is the subset of otellog.Logger the emitter needs; tests
// substitute a capture.
type logBackend interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewLifecycleEmitter returns an events.Producer that records committed
// lifecycle transitions as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op producer.
func NewLifecycleEmitter(provider *sdklog.LoggerProvider) events.Producer {
	if provider == nil {
		return noopEmitter{}
	}
	return &logEmitter{logger: provider.Logger("loaner.lifecycle")}
}

// NewLifecycleEmitterWithLogger returns an emitter writing to the given
// backend directly.
func NewLifecycleEmitterWithLogger(backend logBackend) events.Producer {
	return &logEmitter{logger: backend}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *events.LifecycleEvent) error { return nil }
func (noopEmitter) Close() error                                       { return nil }

type logEmitter struct {
	logger logBackend
}

// Emit converts the lifecycle event to an OTel log record and emits it.
func (e *logEmitter) Emit(ctx context.Context, event *events.LifecycleEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.OccurredAt.IsZero() {
		rec.SetTimestamp(event.OccurredAt)
	}
	rec.SetBody(otellog.StringValue(event.Action))
	if event.DeviceID != "" {
		rec.AddAttributes(otellog.String("device_id", event.DeviceID))
	}
	if event.SerialNumber != "" {
		rec.AddAttributes(otellog.String("serial_number", event.SerialNumber))
	}
	if event.Actor != "" {
		rec.AddAttributes(otellog.String("actor", event.Actor))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func (e *logEmitter) Close() error { return nil }
