package statecache

import (
	"errors"
	"fmt"
)

var (
	// ErrNilTarget is returned by New when there is nothing to wrap.
	ErrNilTarget = errors.New("statecache: target is nil")
	// ErrNoDispatch is returned by New when neither Options.Dispatch is set nor
	// the target implements PolicyProvider.
	ErrNoDispatch = errors.New("statecache: no dispatch metadata")

	// ErrMethodNotFound means the target's concrete type has no such method.
	ErrMethodNotFound = errors.New("statecache: method not found")
	// ErrBadArguments means the arguments do not fit the method signature.
	ErrBadArguments = errors.New("statecache: bad arguments")
	// ErrPanicked wraps a panic recovered from the real method.
	ErrPanicked = errors.New("statecache: method panicked")
	// ErrResultType is returned by Call when the result is not of the requested type.
	ErrResultType = errors.New("statecache: unexpected result type")
)

// InvocationError is returned by Handle when the real method failed. Err is
// the underlying failure; errors.Is and errors.As see through the wrapper.
type InvocationError struct {
	Method Method
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("statecache: invoke %s: %v", e.Method, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func wrapInvocation(m Method, err error) error {
	if err == nil {
		return nil
	}
	var ie *InvocationError
	if errors.As(err, &ie) && ie.Method == m {
		return err
	}
	return &InvocationError{Method: m, Err: err}
}
