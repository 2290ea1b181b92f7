package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC statuses. Messages never carry the
// wrapped detail; unknown errors become an opaque internal error.
func toStatus(err error) *status.Status {
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return status.New(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrUnauthorized):
		return status.New(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrNotFound):
		return status.New(codes.NotFound, "not found")
	case errors.Is(err, common.ErrBlocked):
		return status.New(codes.PermissionDenied, "delivery blocked")
	case errors.Is(err, common.ErrInvalidDocumentType):
		return status.New(codes.FailedPrecondition, "invalid document type")
	case errors.Is(err, common.ErrArtifactMissing):
		return status.New(codes.FailedPrecondition, "artifact missing")
	case errors.Is(err, common.ErrCorruptSource):
		return status.New(codes.FailedPrecondition, "corrupt source document")
	case common.IsRetryable(err):
		return status.New(codes.Unavailable, "storage unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "canceled")
	default:
		return status.New(codes.Internal, "internal error")
	}
}
