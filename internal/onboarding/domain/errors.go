package onboarding

import (
	"errors"
	"fmt"
)

// ErrNoDocument is returned when a run is started without a documentation
// asset. No remote call is issued in that case.
var ErrNoDocument = errors.New("onboarding: no documentation asset supplied")

// FatalError aborts a run. Only the upload and device-create stages fail
// fatally; generation stages degrade to fallback content instead.
type FatalError struct {
	Stage Stage
	Err   error
}

// NewFatalError wraps a stage failure as fatal.
func NewFatalError(stage Stage, err error) *FatalError {
	return &FatalError{Stage: stage, Err: err}
}

// Error implements error.
func (e *FatalError) Error() string {
	if e == nil {
		return "onboarding: fatal error"
	}
	return fmt.Sprintf("onboarding: stage %s failed fatally: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FatalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
