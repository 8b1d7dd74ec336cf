package connections

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionNotConfigured means the named connection is not in
	// the registry. Terminal: retrying cannot make it appear.
	ErrConnectionNotConfigured = errors.New("connection not configured")

	// ErrActionNotFound means the connection exists but does not expose
	// the requested action. Terminal.
	ErrActionNotFound = errors.New("action not found")
)

// ExecutionError wraps a failure raised while performing an action.
// These are the transient failures (rate limits, flaky upstream calls)
// worth retrying.
type ExecutionError struct {
	Connection string
	Action     string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %s on connection %s failed: %v", e.Action, e.Connection, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a retry could plausibly succeed. Missing
// connections and unknown actions are terminal; everything else raised
// during execution is treated as transient.
func IsRetryable(err error) bool {
	return !errors.Is(err, ErrConnectionNotConfigured) && !errors.Is(err, ErrActionNotFound)
}
