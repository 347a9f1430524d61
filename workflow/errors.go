package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures. The HTTP layer maps kinds to status
// codes; the core only promises a kind plus a readable reason.
type Kind int

const (
	KindNotFound Kind = iota
	KindForbidden
	KindInvalidTransition
	KindDuplicateRejected
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindDuplicateRejected:
		return "duplicate_rejected"
	case KindValidation:
		return "validation_error"
	}
	return "unknown"
}

// Error is a classified workflow failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func errNotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func errForbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

func errInvalidTransition(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Reason: fmt.Sprintf(format, args...)}
}

func errDuplicate(format string, args ...any) error {
	return &Error{Kind: KindDuplicateRejected, Reason: fmt.Sprintf(format, args...)}
}

func errValidation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the workflow kind from err.
func KindOf(err error) (Kind, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given workflow kind.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
