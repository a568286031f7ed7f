// Package domain holds the runtime's core types: applications, managed
// threads, invocation records, identity keys and the errors every layer
// shares. Nothing here knows about HTTP; adapters map these errors to their
// own status codes.
package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. The typed errors below unwrap to them.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid")
	ErrUnavailable  = errors.New("unavailable")
	ErrIllegalState = errors.New("illegal state")
)

// NotFoundError names something the runtime does not know: an application,
// a server configuration, a task.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return e.Kind + " not found"
	}

	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError reports that the kind called name does not exist.
func NewNotFoundError(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// ValidationError rejects a configuration value or an argument. Field is the
// setting or parameter name and becomes the key of field-level details.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field == "":
		return "invalid: " + e.Message
	case e.Value != nil:
		return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
	default:
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError rejects field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue rejects field and records the offending value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// UnavailableError means a dependency the runtime needs, such as the shared
// deployment-status store, cannot be reached.
type UnavailableError struct {
	Dependency string
	Reason     string
}

func (e *UnavailableError) Error() string {
	if e.Reason == "" {
		return e.Dependency + " unavailable"
	}

	return fmt.Sprintf("%s unavailable: %s", e.Dependency, e.Reason)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// NewUnavailableError reports dependency as unreachable.
func NewUnavailableError(dependency, reason string) error {
	return &UnavailableError{Dependency: dependency, Reason: reason}
}

// IllegalStateError means an operation met thread or application state that
// no longer permits it. Installing context captured for an application that
// has since been disabled is the common case.
type IllegalStateError struct {
	Operation string
	Reason    string
}

func (e *IllegalStateError) Error() string {
	if e.Operation == "" {
		return e.Reason
	}

	return e.Operation + ": " + e.Reason
}

func (e *IllegalStateError) Unwrap() error { return ErrIllegalState }

// NewIllegalStateError reports that operation cannot proceed.
func NewIllegalStateError(operation, reason string) error {
	return &IllegalStateError{Operation: operation, Reason: reason}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsUnavailable reports whether err is or wraps ErrUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsIllegalState reports whether err is or wraps ErrIllegalState.
func IsIllegalState(err error) bool { return errors.Is(err, ErrIllegalState) }
