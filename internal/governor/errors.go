package governor

import (
	"fmt"
	"time"

	"github.com/ledgergate/ledgergate/internal/sqlguard"
)

// ValidationError rejects unsafe or unparseable SQL. Error() is deliberately
// generic; the machine reason stays in audit logs only.
type ValidationError struct {
	Reason sqlguard.Reason
}

func (e *ValidationError) Error() string {
	return "query could not be processed safely"
}

// RateLimitError reports an exhausted request quota.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// ExecutionError wraps an executor failure or timeout. Retryable errors are
// safe to resubmit unchanged.
type ExecutionError struct {
	Err       error
	Retryable bool
}

func (e *ExecutionError) Error() string {
	return "query execution failed"
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
