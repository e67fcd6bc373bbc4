package processor

import (
	"errors"
	"fmt"
)

// ErrSystemFault marks evaluations that could not reach a decision. It is
// never used for business rejections.
var ErrSystemFault = errors.New("system fault")

// SystemError reports which stage failed and why. Callers may retry.
type SystemError struct {
	Stage string
	Err   error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%v in stage %s: %v", ErrSystemFault, e.Stage, e.Err)
}

func (e *SystemError) Unwrap() []error {
	return []error{ErrSystemFault, e.Err}
}

func (e *SystemError) Retryable() bool {
	return true
}
