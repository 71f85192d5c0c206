package errors

import (
	"context"
	goerrors "errors"
)

// CheckContext returns an error if the context is canceled or timed out.
// This provides a standardized way to check and wrap context errors.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		if goerrors.Is(err, context.DeadlineExceeded) {
			return Wrap(err, Timeout, operation+" timed out")
		}
		return Wrap(err, Canceled, operation+" canceled")
	}
	return nil
}

// CodeOf extracts the ErrorCode from an error chain, or Unknown if the
// chain carries no structured error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if goerrors.As(err, &e) {
		return e.Code()
	}
	return Unknown
}
