package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrPermissionDenied is returned when the caller's token lacks the role an
// operation requires, or the delivery is blocked.
var ErrPermissionDenied = errors.New("permission denied")

// mapError converts a gRPC status into the package's sentinel errors while
// keeping the server message for display.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var base error
	switch st.Code() {
	case codes.Unauthenticated:
		base = common.ErrUnauthorized
	case codes.PermissionDenied:
		base = ErrPermissionDenied
	case codes.NotFound:
		base = common.ErrNotFound
	case codes.Unavailable:
		base = common.ErrStorageUnavailable
	case codes.DeadlineExceeded:
		base = common.ErrTimeout
	default:
		return err
	}
	return fmt.Errorf("%w: %s", base, st.Message())
}
