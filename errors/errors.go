package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrValidation        = fmt.Errorf("invalid message intent")
	ErrStorage           = fmt.Errorf("message store write failed")
	ErrQuery             = fmt.Errorf("message store query failed")
	ErrInvalidCursor     = fmt.Errorf("invalid history cursor")
	ErrUnauthenticated   = fmt.Errorf("identity could not be verified")
	ErrIdentityMismatch  = fmt.Errorf("sender does not match bound identity")
	ErrAlreadyBound      = fmt.Errorf("connection already bound to another identity")
	ErrNotBound          = fmt.Errorf("connection has not announced its identity")
	ErrConnectionClosed  = fmt.Errorf("connection closed")
	ErrConnectionBacklog = fmt.Errorf("connection send buffer exceeded")
	ErrUnknownDriver     = fmt.Errorf("unknown store driver")
	ErrUnknownEvent      = fmt.Errorf("unknown event type")
)

// Ack codes sent back to a client in a send_error frame.
const (
	CodeValidation       = "validation"
	CodeStorage          = "storage"
	CodeIdentityMismatch = "identity_mismatch"
	CodeUnauthenticated  = "unauthenticated"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

// Code returns the ack code a client sees for err.
func Code(err error) string {
	switch {
	case goerrors.Is(err, ErrValidation), goerrors.Is(err, ErrInvalidCursor):
		return CodeValidation
	case goerrors.Is(err, ErrStorage), goerrors.Is(err, ErrQuery):
		return CodeStorage
	case goerrors.Is(err, ErrIdentityMismatch), goerrors.Is(err, ErrAlreadyBound):
		return CodeIdentityMismatch
	case goerrors.Is(err, ErrUnauthenticated), goerrors.Is(err, ErrNotBound):
		return CodeUnauthenticated
	default:
		return CodeInternal
	}
}

// MapToGRPCError converts domain errors into gRPC status errors.
// Errors that already carry a status are returned untouched.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case goerrors.Is(err, ErrValidation), goerrors.Is(err, ErrInvalidCursor):
		return status.Error(codes.InvalidArgument, err.Error())
	case goerrors.Is(err, ErrStorage), goerrors.Is(err, ErrQuery):
		return status.Error(codes.Unavailable, err.Error())
	case goerrors.Is(err, ErrUnauthenticated), goerrors.Is(err, ErrNotBound):
		return status.Error(codes.Unauthenticated, err.Error())
	case goerrors.Is(err, ErrIdentityMismatch), goerrors.Is(err, ErrAlreadyBound):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// MapToHTTPStatus picks the response status for a REST handler error.
func MapToHTTPStatus(err error) int {
	switch {
	case goerrors.Is(err, ErrValidation), goerrors.Is(err, ErrInvalidCursor):
		return http.StatusBadRequest
	case goerrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case goerrors.Is(err, ErrIdentityMismatch):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
