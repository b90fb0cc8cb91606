// Package errs defines the error taxonomy shared by every bookhive service.
// Expected outcomes (validation failures, missing records, conflicts) are
// modelled as tagged errors so callers can branch on the kind without string
// matching. Panics are reserved for programming errors.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the wire.
type Kind string

const (
	KindValidation   Kind = "validation_failed"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindRPCTimeout   Kind = "rpc_timeout"
	KindRPCTransport Kind = "rpc_transport"
	KindInternal     Kind = "internal"
)

// Error carries a kind alongside the human-readable reason. The reason is
// preserved end to end: a rejected reservation update reports not-owner or
// already-terminal, never a generic failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a tagged error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports bad input or a missing referenced entity. Never retried.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// Unauthorized reports a missing, invalid, or expired credential. Fail closed.
func Unauthorized(format string, args ...any) *Error {
	return Newf(KindUnauthorized, format, args...)
}

// Conflict reports a state that is already terminal or a duplicate unique key.
func Conflict(format string, args ...any) *Error {
	return Newf(KindConflict, format, args...)
}

// NotFound reports an absent record.
func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

// KindOf extracts the kind from an error chain. Untagged errors report
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromWire reconstructs a tagged error from its wire representation so
// kinds survive a hop through the broker.
func FromWire(kind, message string) *Error {
	switch Kind(kind) {
	case KindValidation, KindUnauthorized, KindConflict, KindNotFound,
		KindRPCTimeout, KindRPCTransport, KindInternal:
		return New(Kind(kind), message)
	default:
		return New(KindInternal, message)
	}
}

// Sentinel errors for wiring mistakes caught at registration time.
var (
	ErrServiceRequired   = errors.New("bookhive: service is required")
	ErrHandlerRequired   = errors.New("bookhive: handler function is required")
	ErrQueueRequired     = errors.New("bookhive: consume queue is required")
	ErrNameRequired      = errors.New("bookhive: handler name is required")
	ErrPublisherRequired = errors.New("bookhive: publisher is required")
	ErrTopicRequired     = errors.New("bookhive: topic is required")
	ErrConfigRequired    = errors.New("bookhive: configuration is required")
	ErrLoggerRequired    = errors.New("bookhive: logger is required")
	ErrPayloadRequired   = errors.New("bookhive: payload is required")
)

// ConfigValidationError marks configuration problems detected at startup.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("bookhive: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
