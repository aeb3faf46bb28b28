// Package shared contains the error taxonomy used across the module.
package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
)

// Sentinel errors shared by all packages.
var (
	// ErrUserError marks an error whose message is meant for the end user
	ErrUserError = errors.New("user error")

	// ErrNotApplicable indicates that an error does not come from a recognized source
	ErrNotApplicable = errors.New("not applicable")

	// ErrUnrecognizedEnvelope indicates that a recognized driver error has an unexpected message shape
	ErrUnrecognizedEnvelope = errors.New("unrecognized envelope")

	// ErrInvalidConfig indicates that configuration failed validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCatalog indicates that a translation catalog could not be loaded
	ErrCatalog = errors.New("catalog error")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrDependencyFailure indicates that a database or other dependency failed
	ErrDependencyFailure = errors.New("dependency failure")

	// ErrInternal indicates a bug or an unexpected state
	ErrInternal = errors.New("internal error")
)

// Kind is a coarse category of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserError
	KindNotApplicable
	KindUnrecognizedEnvelope
	KindInvalidConfig
	KindCatalog
	KindTimeout
	KindDependencyFailure
	KindInternal
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindUserError:
		return "UserError"
	case KindNotApplicable:
		return "NotApplicable"
	case KindUnrecognizedEnvelope:
		return "UnrecognizedEnvelope"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindCatalog:
		return "Catalog"
	case KindTimeout:
		return "Timeout"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindInternal:
		return "Internal"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var kindToSentinel = map[Kind]error{
	KindUserError:            ErrUserError,
	KindNotApplicable:        ErrNotApplicable,
	KindUnrecognizedEnvelope: ErrUnrecognizedEnvelope,
	KindInvalidConfig:        ErrInvalidConfig,
	KindCatalog:              ErrCatalog,
	KindTimeout:              ErrTimeout,
	KindDependencyFailure:    ErrDependencyFailure,
	KindInternal:             ErrInternal,
}

// kindPriorities is the order in which KindOf checks kinds.
// User errors rank above everything except cancellation and timeouts.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, ErrTimeout},
	{KindUserError, ErrUserError},
	{KindInvalidConfig, ErrInvalidConfig},
	{KindCatalog, ErrCatalog},
	{KindUnrecognizedEnvelope, ErrUnrecognizedEnvelope},
	{KindNotApplicable, ErrNotApplicable},
	{KindDependencyFailure, ErrDependencyFailure},
	{KindInternal, ErrInternal},
}

// KindOf returns the Kind of err by walking its chain in priority order.
// Returns KindUnknown for nil and unrecognized errors.
//
// Example:
//
//	switch shared.KindOf(err) {
//	case shared.KindUserError:
//	    return http.StatusUnprocessableEntity
//	case shared.KindTimeout:
//	    return http.StatusGatewayTimeout
//	default:
//	    return http.StatusInternalServerError
//	}
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, priority := range kindPriorities {
		switch priority.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, priority.err) {
				return priority.kind
			}
		}
	}

	return KindUnknown
}

// SentinelOf returns the sentinel error for kind.
// For KindUnknown and KindCanceled, it returns nil.
func SentinelOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind wraps err with the sentinel of kind so that both
// KindOf(result) == kind and errors.Is(result, err) hold.
// A nil err yields the bare sentinel. Marking with KindUnknown, KindCanceled,
// or a kind err already has returns err unchanged.
//
// Example:
//
//	if _, err := os.ReadFile(path); err != nil {
//	    return shared.MarkKind(err, shared.KindCatalog)
//	}
func MarkKind(err error, kind Kind) error {
	sentinel := SentinelOf(kind)
	if err == nil {
		return sentinel
	}
	if sentinel == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a formatted context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsCanceled reports whether err is or wraps context.Canceled.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
// It checks for context.DeadlineExceeded, net.Error timeouts, and our ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsUserError reports whether err carries an end-user message.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUserError)
}

// IsNotApplicable reports whether err was skipped as not coming from a recognized source.
func IsNotApplicable(err error) bool {
	return errors.Is(err, ErrNotApplicable)
}

// IsUnrecognizedEnvelope reports whether err came from a recognized source in an unexpected shape.
func IsUnrecognizedEnvelope(err error) bool {
	return errors.Is(err, ErrUnrecognizedEnvelope)
}

// IsInvalidConfig reports whether err is a configuration error.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsDependencyFailure reports whether the error indicates an external dependency failure.
func IsDependencyFailure(err error) bool {
	return errors.Is(err, ErrDependencyFailure)
}

// Cause returns the deepest error in the chain of err.
// For errors.Join, returns the first leaf found in breadth-first order.
// If err is nil, Cause returns nil.
func Cause(err error) error {
	if err == nil {
		return nil
	}
	for _, candidate := range UnwrapAll(err) {
		if isLeaf(candidate) {
			return candidate
		}
	}
	return err
}

func isLeaf(err error) bool {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return len(u.Unwrap()) == 0
	}
	return errors.Unwrap(err) == nil
}

// UnwrapAll returns every error reachable from err, outermost first.
// Multi-error nodes (errors.Join, fmt.Errorf with several %w) are flattened.
// If err is nil, returns nil slice.
func UnwrapAll(err error) []error {
	if err == nil {
		return nil
	}

	var result []error
	seen := make(map[error]bool)
	queue := []error{err}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == nil {
			continue
		}

		// Only comparable errors can be map keys; others are never deduplicated.
		if reflect.TypeOf(current).Comparable() {
			if seen[current] {
				continue
			}
			seen[current] = true
		}
		result = append(result, current)

		if u, ok := current.(interface{ Unwrap() []error }); ok {
			queue = append(queue, u.Unwrap()...)
		} else if nested := errors.Unwrap(current); nested != nil {
			queue = append(queue, nested)
		}
	}

	return result
}
