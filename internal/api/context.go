// Package api carries the pieces shared between the engine and whatever
// transport fronts it: the caller identity placed on the request context
// and the mapping from engine errors to gRPC status codes.
package api

import (
	"context"

	"github.com/pyle/loaner/internal/device/service"
)

type contextKey struct{ name string }

var callerKey = contextKey{"caller"}

// WithCaller returns a context carrying the authenticated caller.
// The transport sets this after authentication; services read it via
// CallerFromContext.
func WithCaller(ctx context.Context, caller service.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the caller from ctx and true if set;
// otherwise a zero Caller and false.
func CallerFromContext(ctx context.Context) (service.Caller, bool) {
	v, ok := ctx.Value(callerKey).(service.Caller)
	return v, ok
}
