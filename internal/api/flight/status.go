package flight

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

var codeTable = []struct {
	err  error
	code codes.Code
}{
	{ports.ErrInvalidInput, codes.InvalidArgument},
	{ports.ErrInvalidName, codes.InvalidArgument},
	{ports.ErrMalformedBody, codes.InvalidArgument},
	{models.ErrInvalidLocator, codes.InvalidArgument},
	{models.ErrInvalidRange, codes.InvalidArgument},
	{ports.ErrNotFound, codes.NotFound},
	{ports.ErrConflict, codes.AlreadyExists},
	{ports.ErrLocked, codes.Aborted},
	{ports.ErrAlreadyLocked, codes.Aborted},
	{ports.ErrNotHolder, codes.FailedPrecondition},
	{ports.ErrNotLocked, codes.FailedPrecondition},
	{ports.ErrUnknownAction, codes.Unimplemented},
	{ports.ErrUnimplemented, codes.Unimplemented},
	{ports.ErrRateLimited, codes.ResourceExhausted},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// Code returns the transport code of a domain error
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return codes.Internal
}

// ToStatus maps a domain error to a gRPC status error. Internal errors do not
// leak their details to the caller.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := Code(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// isClientError reports errors caused by the request rather than by the server
func isClientError(code codes.Code) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		return false
	default:
		return true
	}
}
