package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/chat"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps err to a gRPC status whose message is the text shown to
// the user.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, local := range localErrors {
		if errors.Is(err, local) {
			return grpcstatus.Error(codeOf(err), local.Error())
		}
	}
	return grpcstatus.Error(codeOf(err), backend.UserMessage(err))
}

// localErrors are raised by the daemon itself and read well as they are.
var localErrors = []error{chat.ErrEmptyMessage, chat.ErrNotOpen, chat.ErrNotFailed, chat.ErrNotConfirmed}

func codeOf(err error) codes.Code {
	var apiErr *backend.APIError
	var netErr *backend.NetworkError
	switch {
	case errors.Is(err, backend.ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.As(err, &netErr):
		return codes.Unavailable
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return codes.InvalidArgument
		case http.StatusForbidden:
			return codes.PermissionDenied
		case http.StatusNotFound:
			return codes.NotFound
		case http.StatusConflict:
			return codes.FailedPrecondition
		case http.StatusTooManyRequests:
			return codes.ResourceExhausted
		}
		if apiErr.Status >= 500 {
			return codes.Unavailable
		}
		return codes.Unknown
	case errors.Is(err, chat.ErrEmptyMessage):
		return codes.InvalidArgument
	case errors.Is(err, chat.ErrNotOpen), errors.Is(err, chat.ErrNotFailed), errors.Is(err, chat.ErrNotConfirmed):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// invalid reports a malformed request.
func invalid(msg string) error {
	return grpcstatus.Error(codes.InvalidArgument, msg)
}
