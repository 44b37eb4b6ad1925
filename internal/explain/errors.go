package explain

import (
	"errors"
	"fmt"
	"time"
)

// FailureClass classifies a failed submission by whether reattempting the
// same request could plausibly succeed
type FailureClass int

const (
	// ClassRetryable covers timeouts, rate limits, 5xx responses and
	// transient connection failures
	ClassRetryable FailureClass = iota
	// ClassFatal covers auth failures, malformed requests and other 4xx
	// conditions that will not improve on retry
	ClassFatal
)

func (c FailureClass) String() string {
	if c == ClassFatal {
		return "fatal"
	}
	return "retryable"
}

// SubmitError is the terminal error returned by Client.Submit after internal
// retries are done. Class is ClassFatal when the failure short-circuited
// without retrying, ClassRetryable when the attempt bound was exhausted.
type SubmitError struct {
	Class    FailureClass
	Attempts int
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission failed (%s) after %d attempt(s): %v", e.Class, e.Attempts, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a terminal fatal submission failure,
// which usually indicates persistent misconfiguration rather than network noise
func IsFatal(err error) bool {
	var se *SubmitError
	return errors.As(err, &se) && se.Class == ClassFatal
}

// attemptError is a classified single-attempt failure produced by a provider.
// retryAfter carries a server-specified delay (e.g. from a Retry-After
// header) when one was given.
type attemptError struct {
	class      FailureClass
	retryAfter time.Duration
	err        error
}

func (e *attemptError) Error() string {
	return e.err.Error()
}

func (e *attemptError) Unwrap() error {
	return e.err
}

// classOf extracts the failure class from a provider error. Unclassified
// errors (plain transport failures) are treated as retryable.
func classOf(err error) FailureClass {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.class
	}
	return ClassRetryable
}

// retryAfterOf extracts a server-specified retry delay, or zero if none
func retryAfterOf(err error) time.Duration {
	var ae *attemptError
	if errors.As(err, &ae) {
		return ae.retryAfter
	}
	return 0
}
