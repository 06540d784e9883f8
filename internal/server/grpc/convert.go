package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps an evaluation error onto a gRPC status whose code survives the round trip.
func toStatus(err error) error {
	var syntax *expr.SyntaxError
	switch {
	case errors.As(err, &syntax):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, litetable.ErrTypeMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, index.ErrIndexCorruption):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus restores the sentinel behind a status returned by toStatus.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return litetable.NewError(litetable.ErrTypeMismatch, "%s", trimSentinel(st.Message(), litetable.ErrTypeMismatch))
	case codes.DataLoss:
		return litetable.NewError(index.ErrIndexCorruption, "%s", trimSentinel(st.Message(), index.ErrIndexCorruption))
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	default:
		return err
	}
}

// trimSentinel drops the sentinel text the remote side already prefixed, so it is not repeated
// once the sentinel is wrapped again.
func trimSentinel(msg string, sentinel error) string {
	return strings.TrimPrefix(msg, sentinel.Error()+": ")
}
