package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pyle/loaner/internal/device/service"
)

// StatusError maps an engine error to a gRPC status error. The engine
// exposes four externally meaningful kinds: not found, invalid request,
// unauthorized, and internal; everything unrecognized is internal.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(StatusCode(err), err.Error())
}

// StatusCode returns the gRPC code for an engine error.
func StatusCode(err error) codes.Code {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrShelfNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrNoIdentifier),
		errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrNotEnrolled),
		errors.Is(err, service.ErrEnrollmentFailed),
		errors.Is(err, service.ErrUnenrollFailed),
		errors.Is(err, service.ErrAlreadyAssigned),
		errors.Is(err, service.ErrAssigneeRequired),
		errors.Is(err, service.ErrDeviceLost),
		errors.Is(err, service.ErrDeviceDamaged),
		errors.Is(err, service.ErrExtendRejected),
		errors.Is(err, service.ErrNotPendingReturn),
		errors.Is(err, service.ErrInvalidPageToken):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrUnassignedDevice),
		errors.Is(err, service.ErrNotAssignee),
		errors.Is(err, service.ErrAdminOnly),
		errors.Is(err, service.ErrGuestNotAllowed):
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}
