// Package errs implements the error taxonomy from §7: every component
// boundary in this module returns one of these kinds, never a bare error,
// so callers can apply the propagation rules (retry, penalize, abort) the
// spec prescribes without string-sniffing.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for propagation purposes (§7).
type Kind uint8

const (
	// Structural: malformed block/tx, failed parse, out-of-range field.
	// Non-retryable; caller drops the message and may penalize the source.
	Structural Kind = iota
	// Consensus: rule violation. Non-retryable; caller must discard and
	// may penalize the source.
	Consensus
	// NotFound: queried key is absent. Non-retryable.
	NotFound
	// ResizeNeeded: storage memory map exhausted. Retryable internally by
	// the writer; never surfaced to callers.
	ResizeNeeded
	// Io: filesystem or OS error. Retryable at the caller's discretion.
	Io
	// Service: a depended-on service returned an unrecoverable error.
	// Treated as fatal.
	Service
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Consensus:
		return "consensus"
	case NotFound:
		return "not_found"
	case ResizeNeeded:
		return "resize_needed"
	case Io:
		return "io"
	case Service:
		return "service"
	default:
		return "unknown"
	}
}

// Error is a classified, optionally-wrapped error.
type Error struct {
	Kind   Kind
	Reason string // short machine-usable tag, e.g. "VersionIncorrect", "DoubleSpend"
	cause  error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("[%s] %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %v", e.Kind, e.Reason, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Reason == "" || e.Reason == t.Reason)
}

// New builds a classified error wrapping cause with a stack trace attached
// via pkg/errors, so the first log line at the process boundary carries
// enough context to debug without re-running the request.
func New(kind Kind, reason string, cause error) *Error {
	if cause == nil {
		cause = errors.New(reason)
	} else {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Reason: reason, cause: cause}
}

func Structuralf(format string, args ...interface{}) *Error {
	return New(Structural, "", fmt.Errorf(format, args...))
}

func Consensusf(reason, format string, args ...interface{}) *Error {
	return New(Consensus, reason, fmt.Errorf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, "", fmt.Errorf(format, args...))
}

func Iof(cause error, format string, args ...interface{}) *Error {
	return New(Io, "", fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cause))
}

func ResizeNeededf(format string, args ...interface{}) *Error {
	return New(ResizeNeeded, "", fmt.Errorf(format, args...))
}

func Servicef(cause error, format string, args ...interface{}) *Error {
	return New(Service, "", fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cause))
}

// KindOf reports the Kind of err, or Service if err is not a classified
// *Error — an un-classified error crossing a component boundary is itself
// a programming error, so we treat it as fatal rather than silently
// retrying or discarding it.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Service
}

// Retryable reports whether the caller may retry the request that produced
// err (§7 Propagation). ResizeNeeded is handled internally by the writer
// and is never expected to reach a caller, but is reported retryable for
// completeness.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Io, ResizeNeeded:
		return true
	default:
		return false
	}
}
