package query

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrQueryCompile is returned when a query model cannot be compiled into a statement
	ErrQueryCompile = errors.New("query compile error")

	// ErrInvalidWindow is returned for a negative start row or a zero row limit
	ErrInvalidWindow = fmt.Errorf("%w: invalid row window", ErrQueryCompile)

	// ErrExecution is returned when the backing engine fails, including deadlines
	ErrExecution = errors.New("execution error")

	// ErrExplainUnavailable is returned when the engine cannot produce a plan
	ErrExplainUnavailable = errors.New("explain unavailable")
)

// IsQueryCompile checks if an error is a compile error
func IsQueryCompile(err error) bool {
	return errors.Is(err, ErrQueryCompile)
}

// IsExecution checks if an error is an execution error
func IsExecution(err error) bool {
	return errors.Is(err, ErrExecution)
}

// IsExplainUnavailable checks if an error reports a missing plan
func IsExplainUnavailable(err error) bool {
	return errors.Is(err, ErrExplainUnavailable)
}

// ContextError marks err as an execution error when it reports an ended context.
// Other errors are returned unchanged.
func ContextError(err error) error {
	if err == nil || IsExecution(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return err
}

func compileError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrQueryCompile, fmt.Sprintf(format, args...))
}

// executionError wraps an engine error. Context expiry is preferred over the driver's
// own message so callers can test for context.DeadlineExceeded.
func executionError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %s: %w (%v)", ErrExecution, op, ctxErr, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrExecution, op, err)
}
