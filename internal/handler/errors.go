package handler

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrHandlerNotFound   = errors.New("handler not found")
	ErrInstantiation     = errors.New("handler instantiation failed")
	ErrExecution         = errors.New("handler execution failed")
	ErrAlreadyRegistered = errors.New("handler already registered")
)

// ResolutionError reports a handler identifier with no registered factory.
type ResolutionError struct {
	Handler string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unable to load contract method handler %q", e.Handler)
}

func (e *ResolutionError) Unwrap() error {
	return ErrHandlerNotFound
}

// InstantiationError reports a factory that failed, panicked or returned nil.
type InstantiationError struct {
	Handler string
	Cause   error
}

func (e *InstantiationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("unable to instantiate contract method handler %q", e.Handler)
	}
	return fmt.Sprintf("unable to instantiate contract method handler %q: %v", e.Handler, e.Cause)
}

func (e *InstantiationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInstantiation}
	}
	return []error{ErrInstantiation, e.Cause}
}

// ExecutionError reports a dispatch that was resolved but did not complete:
// the handler could not be built, ProcessData failed or panicked, or the wait
// for the worker was cut short.
type ExecutionError struct {
	Handler string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute contract method handler %q: %v", e.Handler, e.Cause)
}

func (e *ExecutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrExecution}
	}
	return []error{ErrExecution, e.Cause}
}

// PanicError carries a value recovered from a handler panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsResolutionError reports whether err is or wraps a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsInstantiationError reports whether err is or wraps an InstantiationError.
func IsInstantiationError(err error) bool {
	var ie *InstantiationError
	return errors.As(err, &ie)
}

// IsExecutionError reports whether err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
