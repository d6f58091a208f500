// Package server assembles the gRPC server: interceptor chain, the standard
// health service, and the engine dependencies the transport handlers bind to.
package server

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pyle/loaner/internal/device/service"
	healthhandler "github.com/pyle/loaner/internal/health/handler"
	"github.com/pyle/loaner/internal/server/interceptors"
)

// publicMethods are the full method names served without a caller identity.
var publicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// Deps holds the services the gRPC surface exposes.
type Deps struct {
	// Lifecycle validates and applies device state transitions.
	Lifecycle *service.Lifecycle
	// Query answers fleet listing and per-user loan queries.
	Query *service.Query
	// HealthPinger is used for readiness (e.g. *sql.DB). If nil, the health
	// check skips the DB ping.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used for readiness (e.g. the OPA evaluator).
	// If nil, the health check skips the policy check.
	HealthPolicyChecker healthhandler.PolicyChecker
}

// New returns a gRPC server with the interceptor chain installed and the
// health service registered. Device service handlers are registered by the
// generated transport layer against deps.Lifecycle and deps.Query.
func New(deps Deps) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(publicMethods),
			interceptors.CallerUnary(publicMethods),
		),
	)
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))
	return s
}
