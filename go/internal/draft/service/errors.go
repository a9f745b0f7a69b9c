package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
)

// toConnectError maps engine errors onto connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	switch drafterr.CodeOf(err) {
	case drafterr.CodeValidation:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case drafterr.CodeStateConflict:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case drafterr.CodeLockContention:
		return connect.NewError(connect.CodeAborted, err)
	case drafterr.CodeNotFound:
		return connect.NewError(connect.CodeNotFound, err)
	case drafterr.CodeForbidden:
		return connect.NewError(connect.CodePermissionDenied, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
