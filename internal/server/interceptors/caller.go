// Package interceptors provides the gRPC unary interceptors shared by the
// server: caller identity propagation and request logging.
package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pyle/loaner/internal/api"
	"github.com/pyle/loaner/internal/device/service"
)

// Metadata keys set by the authenticating gateway in front of this server.
const (
	callerEmailKey = "x-caller-email"
	callerAdminKey = "x-caller-admin"
)

// CallerUnary returns a unary server interceptor that reads the
// authenticated caller from gRPC metadata and places it on the context for
// services to read via api.CallerFromContext. publicMethods is the set of
// full method names that do not require a caller (e.g. the health service).
func CallerUnary(publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		email, admin := extractCaller(ctx)
		if email == "" {
			if publicMethods[info.FullMethod] {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing caller identity")
		}
		ctx = api.WithCaller(ctx, service.Caller{Email: email, Admin: admin})
		return handler(ctx, req)
	}
}

// extractCaller returns the caller email and admin flag from ctx metadata,
// or "" when missing.
func extractCaller(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	var email string
	if vals := md.Get(callerEmailKey); len(vals) > 0 {
		email = strings.TrimSpace(vals[0])
	}
	admin := false
	if vals := md.Get(callerAdminKey); len(vals) > 0 {
		admin = strings.EqualFold(strings.TrimSpace(vals[0]), "true")
	}
	return email, admin
}
