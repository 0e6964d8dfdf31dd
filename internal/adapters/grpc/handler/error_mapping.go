package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"
)

var kindCodes = map[error]codes.Code{
	failure.ErrValidation:   codes.InvalidArgument,
	failure.ErrPrecondition: codes.FailedPrecondition,
	failure.ErrState:        codes.Aborted,
	failure.ErrForbidden:    codes.PermissionDenied,
	failure.ErrExpired:      codes.DeadlineExceeded,
	failure.ErrConflict:     codes.AlreadyExists,
	failure.ErrNotFound:     codes.NotFound,
}

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if kind := failure.KindOf(err); kind != nil {
		return status.Error(kindCodes[kind], err.Error())
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
