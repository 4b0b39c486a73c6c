package bundlecore

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the core wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrPrecondition       = errors.New("precondition failed")
	ErrSigning            = errors.New("signing error")
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrRelayTransport     = errors.New("relay transport error")
	ErrChainRead          = errors.New("chain read error")
	ErrAborted            = errors.New("run aborted")
)

var errorKinds = []error{
	ErrConfiguration,
	ErrPrecondition,
	ErrSigning,
	ErrSubmissionRejected,
	ErrRelayTransport,
	ErrChainRead,
	ErrAborted,
}

// StepError records which state the run was in when it failed.
type StepError struct {
	Step State
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	case errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind wrapped by err, or nil if err carries none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range errorKinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Retryable reports whether a caller may start a fresh run after err.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrSubmissionRejected, ErrRelayTransport, ErrChainRead, ErrAborted:
		return true
	}
	return false
}
