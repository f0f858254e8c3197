package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindGuardViolation            Kind = "GUARD_VIOLATION"
	KindNotFound                  Kind = "NOT_FOUND"
	KindClassificationUnavailable Kind = "CLASSIFICATION_UNAVAILABLE"
	KindInvalid                   Kind = "INVALID_ARGUMENT"
)

// Guard names the precondition that rejected an operation.
type Guard string

const (
	GuardQuota            Guard = "quota"
	GuardDuplicate        Guard = "duplicate"
	GuardWrongState       Guard = "wrong-state"
	GuardMissingDocuments Guard = "missing-documents"
	GuardUnconfirmed      Guard = "unconfirmed"
)

// Error is the error contract shared by the engine and its stores.
type Error struct {
	Kind    Kind
	Guard   Guard
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	prefix := e.Op
	if e.Guard != "" {
		if prefix != "" {
			prefix += ": "
		}
		prefix += fmt.Sprintf("guard %s failed", e.Guard)
	}

	switch {
	case prefix != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case prefix != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case prefix != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func GuardViolation(guard Guard, op, msg string) error {
	return &Error{Kind: KindGuardViolation, Guard: guard, Op: op, Message: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

func Invalid(op, msg string) error {
	return &Error{Kind: KindInvalid, Op: op, Message: msg}
}

func ClassificationUnavailable(op string, err error) error {
	return &Error{Kind: KindClassificationUnavailable, Op: op, Message: "external classifier failed", Err: err}
}

func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// IsGuard reports whether err is a guard violation for the given guard.
func IsGuard(err error, guard Guard) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == KindGuardViolation && ae.Guard == guard
	}
	return false
}

func IsGuardViolation(err error) bool { return IsKind(err, KindGuardViolation) }

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
