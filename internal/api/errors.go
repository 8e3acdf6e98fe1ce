package api

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/security-somanos/blockchain-center/land"
	"github.com/security-somanos/blockchain-center/scene"
	"github.com/security-somanos/blockchain-center/tessellate"
)

// ErrInvalidArgument marks client-side validation failures.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatusError maps globe errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, land.ErrMalformedDataset),
		errors.Is(err, land.ErrNoLand):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, tessellate.ErrNoWorker):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, tessellate.ErrWorkerTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, context.Canceled),
		errors.Is(err, scene.ErrDisposed):
		return status.Error(codes.Canceled, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// httpStatus picks the HTTP status for err through its gRPC code so both
// surfaces agree.
func httpStatus(err error) int {
	switch status.Code(ToStatusError(err)) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
