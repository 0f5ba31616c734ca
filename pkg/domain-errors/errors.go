// Package domainerrors provides coded domain errors so services can classify
// failures without leaking store or transport details to callers.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for mapping to caller behavior (HTTP status,
// retry decision, alerting).
type Code string

const (
	// CodeValidation marks malformed caller input (bad IP literal, bad range).
	CodeValidation Code = "validation"
	// CodeConfiguration marks missing or contradictory configuration that must
	// be surfaced, never silently defaulted.
	CodeConfiguration Code = "configuration"
	// CodeConflict marks a uniqueness or single-flight violation.
	CodeConflict Code = "conflict"
	// CodeNotFound marks a missing record.
	CodeNotFound Code = "not_found"
	// CodeUnavailable marks a transient persistence failure; callers may retry.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks an unexpected invariant failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It wraps an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is treats two domain errors with the same code as equivalent, which lets
// callers use errors.Is with sentinel-style values.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New builds a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
